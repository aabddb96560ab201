// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes hikelog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/hikelog/internal/hikeservice"
	"github.com/starford/hikelog/internal/models"
)

const exportFormatURI = "hikelog://export-format"

// Server wraps the MCP server with hikelog tools.
type Server struct {
	mcp *server.MCPServer
	svc *hikeservice.Service
}

// New creates a new MCP server with all hikelog tools registered.
func New(svc *hikeservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Hikelog",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_hikes",
		mcp.WithDescription("List every recorded hike, newest first."),
	), s.listHikes)

	s.mcp.AddTool(mcp.NewTool("search_hikes",
		mcp.WithDescription("Search hikes by name (case-insensitive substring). "+
			"Optional filters narrow the result; every supplied filter must match."),
		mcp.WithString("query", mcp.Description("Text contained in the hike name")),
		mcp.WithString("location", mcp.Description("Text contained in the location")),
		mcp.WithNumber("min_length", mcp.Description("Minimum length in km")),
		mcp.WithNumber("max_length", mcp.Description("Maximum length in km")),
		mcp.WithString("date", mcp.Description("Exact date, YYYY-MM-DD")),
		mcp.WithString("difficulty", mcp.Enum("Easy", "Moderate", "Hard")),
		mcp.WithBoolean("parking", mcp.Description("Parking available")),
	), s.searchHikes)

	s.mcp.AddTool(mcp.NewTool("get_hike",
		mcp.WithDescription("Get one hike with its observations."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Hike id")),
	), s.getHike)

	s.mcp.AddTool(mcp.NewTool("create_hike",
		mcp.WithDescription("Record a new hike. Refused when an identical hike "+
			"(name, location, date, length, difficulty, parking) exists unless force is true."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("location", mcp.Required()),
		mcp.WithString("date", mcp.Required(), mcp.Description("YYYY-MM-DD")),
		mcp.WithBoolean("parking_available", mcp.Required()),
		mcp.WithNumber("length_km", mcp.Required()),
		mcp.WithString("difficulty", mcp.Required(), mcp.Enum("Easy", "Moderate", "Hard")),
		mcp.WithString("description"),
		mcp.WithNumber("elevation_gain_m", mcp.Description("Whole metres")),
		mcp.WithNumber("rating", mcp.Description("0 to 5")),
		mcp.WithNumber("latitude", mcp.Description("-90 to 90")),
		mcp.WithNumber("longitude", mcp.Description("-180 to 180")),
		mcp.WithBoolean("force", mcp.Description("Store even if a duplicate exists")),
	), s.createHike)

	s.mcp.AddTool(mcp.NewTool("delete_hike",
		mcp.WithDescription("Delete a hike and all of its observations."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Hike id")),
	), s.deleteHike)

	s.mcp.AddTool(mcp.NewTool("add_observation",
		mcp.WithDescription("Attach a timestamped observation to a hike."),
		mcp.WithNumber("hike_id", mcp.Required()),
		mcp.WithString("observation", mcp.Required()),
		mcp.WithNumber("timestamp", mcp.Description("Milliseconds since epoch; defaults to now")),
		mcp.WithString("comments"),
	), s.addObservation)

	s.mcp.AddTool(mcp.NewTool("export_hike",
		mcp.WithDescription("Export a hike and its observations as shareable text. "+
			"See the "+exportFormatURI+" resource for the format."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Hike id")),
	), s.exportHike)

	s.mcp.AddTool(mcp.NewTool("import_hike",
		mcp.WithDescription("Import a hike from text produced by export_hike."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Exported hike text or its JSON object")),
	), s.importHike)

	s.mcp.AddTool(mcp.NewTool("attach_photo",
		mcp.WithDescription("Set a hike's photo from a base64 data URI or an http(s) URL. "+
			"Supported formats: png, jpg, jpeg, gif, webp."),
		mcp.WithNumber("hike_id", mcp.Required()),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
	), s.attachPhoto)

	s.mcp.AddTool(mcp.NewTool("get_export_format",
		mcp.WithDescription("Returns the hike export format contract."),
	), s.getExportFormat)

	s.mcp.AddResource(
		mcp.NewResource(exportFormatURI, "Hike Export Format",
			mcp.WithResourceDescription("Text format used by export_hike and import_hike."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func floatArg(req mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := req.GetArguments()[key].(float64)
	return v, ok
}

func boolArg(req mcp.CallToolRequest, key string) (bool, bool) {
	v, ok := req.GetArguments()[key].(bool)
	return v, ok
}

func idArg(req mcp.CallToolRequest, key string) (int64, error) {
	v, ok := floatArg(req, key)
	if !ok || v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(v), nil
}

// wholeArg reads an optional integer argument. Fractions are refused, not truncated.
func wholeArg(req mcp.CallToolRequest, key string) (int64, bool, error) {
	v, ok := floatArg(req, key)
	if !ok {
		return 0, false, nil
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%s must be a whole number", key)
	}
	return int64(v), true, nil
}

func (s *Server) listHikes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hikes, err := s.svc.ListHikes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hikes) == 0 {
		return mcp.NewToolResultText("no hikes recorded"), nil
	}
	return jsonResult(hikes), nil
}

func (s *Server) searchHikes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := models.SearchCriteria{
		Name:     req.GetString("query", ""),
		Location: req.GetString("location", ""),
		Date:     req.GetString("date", ""),
	}
	if v, ok := floatArg(req, "min_length"); ok {
		c.MinLength = &v
	}
	if v, ok := floatArg(req, "max_length"); ok {
		c.MaxLength = &v
	}
	if v, ok := boolArg(req, "parking"); ok {
		c.Parking = &v
	}
	if v := req.GetString("difficulty", ""); v != "" {
		d, err := models.ParseDifficulty(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		c.Difficulty = d
	}
	if c.IsEmpty() {
		return mcp.NewToolResultError("provide a query or at least one filter"), nil
	}

	var (
		hikes []models.Hike
		err   error
	)
	if (c == models.SearchCriteria{Name: c.Name}) {
		hikes, err = s.svc.SearchHikes(ctx, c.Name)
	} else {
		hikes, err = s.svc.AdvancedSearch(ctx, c)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hikes) == 0 {
		return mcp.NewToolResultText("no matching hikes"), nil
	}
	return jsonResult(hikes), nil
}

type hikeDetail struct {
	models.Hike
	Observations []models.Observation `json:"observations"`
}

func (s *Server) getHike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.svc.GetHike(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obs, err := s.svc.ListObservations(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if obs == nil {
		obs = []models.Observation{}
	}
	return jsonResult(hikeDetail{Hike: *h, Observations: obs}), nil
}

func (s *Server) createHike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	location, err := req.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parking, ok := boolArg(req, "parking_available")
	if !ok {
		return mcp.NewToolResultError("parking_available is required"), nil
	}
	length, ok := floatArg(req, "length_km")
	if !ok {
		return mcp.NewToolResultError("length_km is required"), nil
	}
	difficulty, err := models.ParseDifficulty(req.GetString("difficulty", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h := models.Hike{
		Name:             name,
		Location:         location,
		Date:             date,
		ParkingAvailable: parking,
		LengthKm:         length,
		Difficulty:       difficulty,
	}
	if v := req.GetString("description", ""); v != "" {
		h.Description = &v
	}
	elevation, ok, err := wholeArg(req, "elevation_gain_m")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		h.ElevationGainM = models.Ptr(int(elevation))
	}
	if v, ok := floatArg(req, "rating"); ok {
		h.Rating = &v
	}
	if v, ok := floatArg(req, "latitude"); ok {
		h.Latitude = &v
	}
	if v, ok := floatArg(req, "longitude"); ok {
		h.Longitude = &v
	}
	force, _ := boolArg(req, "force")

	created, err := s.svc.CreateHike(ctx, h, force)
	if err != nil {
		var dup *hikeservice.DuplicateError
		if errors.As(err, &dup) {
			return mcp.NewToolResultError(dup.Error() + "; pass force=true to store it anyway"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(created), nil
}

func (s *Server) deleteHike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteHike(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted hike %d", id)), nil
}

func (s *Server) addObservation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hikeID, err := idArg(req, "hike_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("observation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o := models.Observation{HikeID: hikeID, Observation: text, Timestamp: time.Now().UnixMilli()}
	ts, ok, err := wholeArg(req, "timestamp")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		o.Timestamp = ts
	}
	if v := req.GetString("comments", ""); v != "" {
		o.Comments = &v
	}
	created, err := s.svc.AddObservation(ctx, o)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(created), nil
}

func (s *Server) exportHike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.ExportHike(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) importHike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.svc.ImportFromText(ctx, text)
	if !res.Success {
		return mcp.NewToolResultError(res.Message), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getExportFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ExportFormatContract), nil
}

func (s *Server) readExportFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      exportFormatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormatContract,
		},
	}, nil
}
