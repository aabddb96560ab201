package hikeservice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/hikelog/internal/models"
	"github.com/starford/hikelog/internal/photos"
	"github.com/starford/hikelog/internal/testutil"
)

func photoOnDisk(t *testing.T, dir string, ref *string) bool {
	t.Helper()
	if ref == nil {
		t.Fatal("photo ref is nil")
	}
	_, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(*ref, photos.RefPrefix)))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return err == nil
}

func hikeWithPhoto(t *testing.T, svc *Service, h models.Hike) *models.Hike {
	t.Helper()
	created := mustCreate(t, svc, h)
	withPhoto, err := svc.AttachPhoto(context.Background(), created.ID, "summit.png", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	return withPhoto
}

func otherHike() models.Hike {
	h := testutil.Snowdon()
	h.Name = "Glyder Fach"
	return h
}

func TestSharedPhotoSurvivesObservationDelete(t *testing.T) {
	dir, ps := testutil.TestPhotos(t)
	svc, _ := setup(t, WithPhotos(ps))
	ctx := context.Background()
	a := hikeWithPhoto(t, svc, testutil.Snowdon())
	b := mustCreate(t, svc, otherHike())

	o, err := svc.AddObservation(ctx, models.Observation{HikeID: b.ID, Observation: "Borrowed view", Timestamp: 1, PhotoURI: a.PhotoURI})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteObservation(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if !photoOnDisk(t, dir, a.PhotoURI) {
		t.Fatal("deleting the observation removed a photo hike A still uses")
	}

	if _, err := svc.AddObservation(ctx, models.Observation{HikeID: b.ID, Observation: "Again", Timestamp: 2, PhotoURI: a.PhotoURI}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteHike(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if !photoOnDisk(t, dir, a.PhotoURI) {
		t.Fatal("deleting hike B removed a photo hike A still uses")
	}
}

func TestUpdateHikeRemovesReplacedPhoto(t *testing.T) {
	dir, ps := testutil.TestPhotos(t)
	svc, _ := setup(t, WithPhotos(ps))
	ctx := context.Background()
	h := hikeWithPhoto(t, svc, testutil.Snowdon())
	ref := h.PhotoURI

	rated := *h
	rated.Rating = models.Ptr(4.0)
	if _, err := svc.UpdateHike(ctx, rated); err != nil {
		t.Fatal(err)
	}
	if !photoOnDisk(t, dir, ref) {
		t.Fatal("update that kept photoUri removed the photo")
	}

	cleared := rated
	cleared.PhotoURI = nil
	if _, err := svc.UpdateHike(ctx, cleared); err != nil {
		t.Fatal(err)
	}
	if photoOnDisk(t, dir, ref) {
		t.Fatal("photo still on disk after photoUri was cleared")
	}
}

func TestDeleteAllRemovesPhotos(t *testing.T) {
	dir, ps := testutil.TestPhotos(t)
	svc, _ := setup(t, WithPhotos(ps))
	ctx := context.Background()
	h := hikeWithPhoto(t, svc, testutil.Snowdon())
	o, err := svc.AddObservation(ctx, models.Observation{HikeID: h.ID, Observation: "Cairn", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	o, err = svc.AttachObservationPhoto(ctx, o.ID, "cairn.jpg", strings.NewReader("jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	if photoOnDisk(t, dir, h.PhotoURI) || photoOnDisk(t, dir, o.PhotoURI) {
		t.Fatal("photos left on disk after DeleteAll")
	}
}

func TestAttachObservationPhoto(t *testing.T) {
	dir, ps := testutil.TestPhotos(t)
	svc, rec := setup(t, WithPhotos(ps))
	ctx := context.Background()
	h := mustCreate(t, svc, testutil.Snowdon())
	o, err := svc.AddObservation(ctx, models.Observation{HikeID: h.ID, Observation: "Ravens", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}

	first, err := svc.AttachObservationPhoto(ctx, o.ID, "ravens.png", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if first.PhotoURI == nil || !strings.HasPrefix(*first.PhotoURI, photos.RefPrefix) {
		t.Fatalf("photoUri = %v", first.PhotoURI)
	}
	got, err := svc.GetObservation(ctx, o.ID)
	if err != nil || got.PhotoURI == nil || *got.PhotoURI != *first.PhotoURI {
		t.Fatalf("stored observation = %+v, %v", got, err)
	}

	second, err := svc.AttachObservationPhoto(ctx, o.ID, "ravens2.jpg", strings.NewReader("jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if photoOnDisk(t, dir, first.PhotoURI) || !photoOnDisk(t, dir, second.PhotoURI) {
		t.Fatal("replaced observation photo not cleaned up")
	}
	if k := rec.got(); k[len(k)-1] != "updated" {
		t.Fatalf("notifications = %v", k)
	}

	if _, err := svc.AttachObservationPhoto(ctx, 999, "x.png", strings.NewReader("png")); err == nil {
		t.Fatal("expected error for missing observation")
	}
	if _, err := svc.AttachObservationPhoto(ctx, o.ID, "notes.txt", strings.NewReader("text")); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}
