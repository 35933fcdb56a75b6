package serialmux

import (
	"testing"
)

func TestParseAccelLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantNil bool
		x, y, z float64
		ts      int64
	}{
		{name: "json", line: `{"t":1700000000123,"x":0.1,"y":0.0,"z":9.8}`, wantOK: true, x: 0.1, y: 0, z: 9.8, ts: 1700000000123},
		{name: "json without timestamp", line: `{"x":1,"y":2,"z":3}`, wantOK: true, x: 1, y: 2, z: 3},
		{name: "json missing axis", line: `{"x":1,"y":2}`, wantOK: true, wantNil: true},
		{name: "csv", line: "1700000000123, 0.25,-0.5,1", wantOK: true, x: 0.25, y: -0.5, z: 1, ts: 1700000000123},
		{name: "crlf", line: "5,1,2,3\r\n", wantOK: true, x: 1, y: 2, z: 3, ts: 5},
		{name: "status json", line: `{"status":"ok"}`},
		{name: "bad json", line: `{"x":`},
		{name: "banner", line: "IMU v2.1 ready"},
		{name: "short csv", line: "1,2,3"},
		{name: "bad number", line: "1,a,2,3"},
		{name: "bad timestamp", line: "x,1,2,3"},
		{name: "empty", line: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ParseAccelLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if tt.wantNil {
				if ev.Z != nil {
					t.Errorf("Z = %v, want nil", *ev.Z)
				}
				return
			}
			if ev.X == nil || ev.Y == nil || ev.Z == nil {
				t.Fatalf("missing axis in %+v", ev)
			}
			if *ev.X != tt.x || *ev.Y != tt.y || *ev.Z != tt.z {
				t.Errorf("axes = %v,%v,%v, want %v,%v,%v", *ev.X, *ev.Y, *ev.Z, tt.x, tt.y, tt.z)
			}
			if ev.TimestampMillis != tt.ts {
				t.Errorf("TimestampMillis = %d, want %d", ev.TimestampMillis, tt.ts)
			}
		})
	}
}
