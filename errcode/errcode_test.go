package errcode

import (
	"errors"
	"testing"
)

func TestCodeStringsStable(t *testing.T) {
	cases := []struct {
		c    Code
		want string
	}{
		{OK, "ok"},
		{Busy, "busy"},
		{Unsupported, "unsupported"},
		{InvalidParams, "invalid_params"},
		{InvalidPayload, "invalid_payload"},
		{InvalidTopic, "invalid_topic"},
		{Timeout, "timeout"},
		{NotCharging, "not_charging"},
		{Unavailable, "unavailable"},
		{Detached, "detached"},
		{LinkDown, "link_down"},
		{ReadFailed, "read_failed"},
		{Error, "error"},
	}
	for _, tc := range cases {
		if got := tc.c.Error(); got != tc.want {
			t.Fatalf("%q: got %q", tc.want, got)
		}
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if Of(Busy) != Busy {
		t.Fatal("bare code not preserved")
	}
	if Of(&E{C: Detached}) != Detached {
		t.Fatal("wrapped code not extracted")
	}
	if Of(errors.New("boom")) != Error {
		t.Fatal("foreign error should map to generic error")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("nack")
	e := Wrap(ReadFailed, "read_status", cause)
	if e.Error() != "read_status: read_failed: nack" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if Of(e) != ReadFailed {
		t.Fatal("code lost")
	}
}
