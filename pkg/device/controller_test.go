package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/gesture"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

func newTestDevice(f *fakeDevice, handler http.HandlerFunc) (*Device, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := testserver.NewTestClient(server.URL, server.Client())
	return NewTestDevice(adb.NewTestBridge("serial-1", f), client, 34777), server
}

func TestTapAttachesDispatchParameters(t *testing.T) {
	var got gesture.Descriptor
	d, server := newTestDevice(newFakeDevice(), func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSON gesture.Descriptor `json:"json"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = req.JSON
		json.NewEncoder(w).Encode(map[string]interface{}{"outcome": "SUCCESS"})
	})
	defer server.Close()

	err := d.Tap(context.Background(), "* marked:'ok'", 10, 20, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Query != "* marked:'ok'" {
		t.Errorf("expected query attached at dispatch, got %q", got.Query)
	}
	if got.Timeout == 0 {
		t.Error("expected wait timeout attached at dispatch")
	}
	if got.Kind != gesture.KindTap {
		t.Errorf("unexpected kind: %s", got.Kind)
	}
}

func TestSwipeDispatch(t *testing.T) {
	var got gesture.Descriptor
	d, server := newTestDevice(newFakeDevice(), func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSON gesture.Descriptor `json:"json"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		got = req.JSON
		json.NewEncoder(w).Encode(map[string]interface{}{"outcome": "SUCCESS"})
	})
	defer server.Close()

	err := d.Swipe(context.Background(), "*", gesture.Point{X: 0, Y: 0}, gesture.Point{X: 100, Y: 50}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.To == nil || got.To.X != 100 {
		t.Errorf("unexpected swipe target: %+v", got.To)
	}
	if got.Flick {
		t.Error("plain swipe must not set flick")
	}
}

func TestChangeServer(t *testing.T) {
	d := NewTestDevice(adb.NewTestBridge("serial-1", newFakeDevice()), testserver.NewClient(34777), 34777)

	d.ChangeServer(34888)
	if d.LocalPort() != 34888 {
		t.Errorf("expected rebound port, got %d", d.LocalPort())
	}
	if d.Serial() != "serial-1" {
		t.Error("device identity must survive a server change")
	}
}

func TestScreenshot(t *testing.T) {
	f := newFakeDevice()
	d := NewTestDevice(adb.NewTestBridge("serial-1", f), testserver.NewClient(34777), 34777)

	path := filepath.Join(t.TempDir(), "screen.png")
	if err := d.Screenshot(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected screenshot written: %v", err)
	}
}

func TestPerformActionThroughController(t *testing.T) {
	d, server := newTestDevice(newFakeDevice(), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	defer server.Close()

	if _, err := d.PerformAction(context.Background(), "press_back_button"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
