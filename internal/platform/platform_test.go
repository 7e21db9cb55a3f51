package platform

import (
	"errors"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{in: "127.0.0.1:10000", want: Endpoint{Host: "127.0.0.1", Port: 10000}},
		{in: "sim-host:10003", want: Endpoint{Host: "sim-host", Port: 10003}},
		{in: "127.0.0.1", wantErr: true},
		{in: "127.0.0.1:0", wantErr: true},
		{in: ":10000", wantErr: true},
		{in: "host:abc", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseEndpoint(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClientPoolOrderAndDuplicates(t *testing.T) {
	a := Endpoint{Host: "127.0.0.1", Port: 10000}
	b := Endpoint{Host: "127.0.0.1", Port: 10001}
	p := NewClientPool(a, b, a)
	if p.Len() != 2 {
		t.Fatalf("expected 2 endpoints, got %d", p.Len())
	}
	if err := p.Add(b); err == nil {
		t.Fatalf("expected duplicate add to fail")
	}
	eps := p.Endpoints()
	if eps[0] != a || eps[1] != b {
		t.Fatalf("unexpected order: %v", eps)
	}
	eps[0] = Endpoint{Host: "mutated", Port: 1}
	if p.Endpoints()[0] != a {
		t.Fatalf("Endpoints must return a copy")
	}
}

func TestRecordingSpecClaimOnce(t *testing.T) {
	r := NewRecordingSpec("out/Mission_0.tgz")
	r.RecordRewards()
	r.RecordMP4(24, 400000)
	if !r.IsRecording() || !r.RewardsEnabled() {
		t.Fatalf("expected rewards to be recorded")
	}
	if v := r.Video(); v == nil || v.FramesPerSecond != 24 || v.BitRate != 400000 {
		t.Fatalf("unexpected video settings: %+v", v)
	}
	if err := r.Claim(); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := r.Claim(); !errors.Is(err, ErrRecordingReused) {
		t.Fatalf("second claim = %v, want ErrRecordingReused", err)
	}
}

func TestRecordingSpecEmptyDestination(t *testing.T) {
	r := NewRecordingSpec("")
	r.RecordRewards()
	if r.IsRecording() {
		t.Fatalf("spec without destination should not record")
	}
}
