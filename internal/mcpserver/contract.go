package mcpserver

// ExportFormatContract describes the shareable hike text that export_hike
// produces and import_hike accepts.
const ExportFormatContract = `# Hikelog Export Format

An exported hike is plain text: a human-readable summary, a blank line, the
marker line ` + "`--- hike data ---`" + `, then one JSON object.

Importers ignore everything except the first balanced JSON object after the
marker (or in the whole text when the marker is absent), so the summary can be
edited or dropped freely.

## JSON object

` + "```" + `json
{
  "name": "Snowdon",                 // REQUIRED, 1-100 chars
  "location": "Llanberis, UK",       // REQUIRED, 1-200 chars
  "date": "2025-07-10",              // REQUIRED, YYYY-MM-DD
  "parkingAvailable": true,          // REQUIRED
  "lengthKm": 14.5,                  // REQUIRED, > 0 and <= 1000
  "difficulty": "Hard",              // REQUIRED: Easy | Moderate | Hard
  "description": "Llanberis path",   // optional
  "elevationGainM": 1085,            // optional
  "rating": 4.5,                     // optional, 0-5
  "latitude": 53.068,                // optional
  "longitude": -4.076,               // optional
  "observations": [                  // always present, may be empty
    {"observation": "Mist", "timestamp": 1752141600000, "comments": "cleared later"}
  ]
}
` + "```" + `

## Rules

1. A required key that is absent or null fails the import with
   ` + "`missing required fields: <keys in the order above>`" + `.
2. Text without a parseable JSON object fails with ` + "`invalid JSON`" + `.
3. A hike with the same name, location, date, lengthKm, difficulty and
   parkingAvailable as a stored hike is not imported again.
4. Photos and the calendar flag are device-local and never exported.
5. Timestamps are milliseconds since the Unix epoch.
`
