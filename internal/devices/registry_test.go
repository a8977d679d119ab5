package devices

import (
	"context"
	"errors"
	"testing"

	"credential-service/internal/models"

	"go.uber.org/zap"
)

func TestConnectAssignsIDAndMarksOnline(t *testing.T) {
	reg := NewRegistry(nil, zap.NewNop())

	rec, err := reg.Connect(context.Background(), models.DeviceRecord{
		Type:     models.DeviceFingerprint,
		Location: "Main Gate",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if rec.ID == "" {
		t.Error("device has no id")
	}
	if rec.Status != models.DeviceOnline {
		t.Errorf("status = %s, want ONLINE", rec.Status)
	}
	if rec.LastSync.IsZero() {
		t.Error("last sync not set")
	}
}

func TestConnectRejectsUnknownType(t *testing.T) {
	reg := NewRegistry(nil, zap.NewNop())

	_, err := reg.Connect(context.Background(), models.DeviceRecord{Type: "TOASTER"})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("got %v, want ErrInvalidDevice", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	reg := NewRegistry(nil, zap.NewNop())
	ctx := context.Background()

	rec, err := reg.Connect(ctx, models.DeviceRecord{ID: "gate-1", Type: models.DeviceFace})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	updated, err := reg.UpdateStatus(ctx, rec.ID, models.DeviceMaintenance)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != models.DeviceMaintenance {
		t.Errorf("status = %s", updated.Status)
	}

	if _, err := reg.UpdateStatus(ctx, "unknown", models.DeviceOnline); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("unknown device: got %v", err)
	}
	if _, err := reg.UpdateStatus(ctx, rec.ID, "BROKEN"); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("bad status: got %v", err)
	}
}

func TestListIsSorted(t *testing.T) {
	reg := NewRegistry(nil, zap.NewNop())
	ctx := context.Background()

	for _, id := range []string{"gate-3", "gate-1", "gate-2"} {
		if _, err := reg.Connect(ctx, models.DeviceRecord{ID: id, Type: models.DeviceFingerprint}); err != nil {
			t.Fatalf("Connect %s: %v", id, err)
		}
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	for i, want := range []string{"gate-1", "gate-2", "gate-3"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestGet(t *testing.T) {
	reg := NewRegistry(nil, zap.NewNop())

	if _, err := reg.Get("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("got %v, want ErrDeviceNotFound", err)
	}

	if _, err := reg.Connect(context.Background(), models.DeviceRecord{ID: "gate-1", Type: models.DeviceIris}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec, err := reg.Get("gate-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Type != models.DeviceIris {
		t.Errorf("type = %s", rec.Type)
	}
}
