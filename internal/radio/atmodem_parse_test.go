package radio

import (
	"context"
	"testing"

	"github.com/netplume/wifimgr-go/internal/models"
)

func TestSplitCSVQuotedCommas(t *testing.T) {
	got := splitCSV(`3,"Cafe, upstairs",-61,"aa:bb:cc:dd:ee:ff",6`)
	want := []string{"3", `"Cafe, upstairs"`, "-61", `"aa:bb:cc:dd:ee:ff"`, "6"}
	if len(got) != len(want) {
		t.Fatalf("got %d fields, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectScanLine(t *testing.T) {
	d := NewATModem("/dev/null", 0)
	d.collectScanLine(`(3,"HomeNet",-55,"aa:bb:cc:dd:ee:ff",11)`)
	d.collectScanLine(`(0,"",-80,"11:22:33:44:55:66",1)`)
	d.collectScanLine(`(garbage`)

	nets, err := d.ScanResults(context.Background())
	if err != nil {
		t.Fatalf("ScanResults failed: %v", err)
	}
	if len(nets) != 2 {
		t.Fatalf("got %d networks, want 2 (malformed line dropped)", len(nets))
	}
	if nets[0].SSID != "HomeNet" || nets[0].RSSI != -55 || nets[0].Security != models.SecurityWPA2 {
		t.Errorf("first network = %+v", nets[0])
	}
	if nets[0].Quality != 90 {
		t.Errorf("quality = %d, want 90 for -55 dBm", nets[0].Quality)
	}
	if !nets[1].Hidden {
		t.Error("empty-SSID record should be marked hidden")
	}
}

func TestECNToSecurity(t *testing.T) {
	cases := []struct {
		ecn  int
		want models.Security
	}{
		{0, models.SecurityOpen},
		{1, models.SecurityWEP},
		{2, models.SecurityWPA},
		{3, models.SecurityWPA2},
		{4, models.SecurityWPA2},
		{7, models.SecurityWPA3},
	}
	for _, c := range cases {
		if got := ecnToSecurity(c.ecn); got != c.want {
			t.Errorf("ecnToSecurity(%d) = %v, want %v", c.ecn, got, c.want)
		}
	}
}
