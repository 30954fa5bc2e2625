package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	if p := paramsFor("limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p := paramsFor("limit=-3&offset=-1"); p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("expected defaults for negative values, got %+v", p)
	}
	if p := paramsFor("limit=5&offset=10"); p.Limit != 5 || p.Offset != 10 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		p          Params
		n          int
		start, end int
	}{
		{Params{Limit: 3, Offset: 0}, 7, 0, 3},
		{Params{Limit: 3, Offset: 6}, 7, 6, 7},
		{Params{Limit: 3, Offset: 9}, 7, 7, 7},
		{Params{Limit: 20, Offset: 0}, 0, 0, 0},
	}
	for _, tt := range tests {
		start, end := tt.p.Window(tt.n)
		if start != tt.start || end != tt.end {
			t.Errorf("%+v.Window(%d) = [%d,%d), want [%d,%d)", tt.p, tt.n, start, end, tt.start, tt.end)
		}
	}
}

func TestNewResponse_HasMoreAndNext(t *testing.T) {
	r := NewResponse([]int{1, 2}, 7, 2, 0).WithNext("/api/v1/patients", url.Values{"q": {"smith"}})
	if !r.HasMore {
		t.Fatal("expected has_more")
	}
	if r.Next != "/api/v1/patients?limit=2&offset=2&q=smith" {
		t.Errorf("unexpected next link %q", r.Next)
	}

	last := NewResponse([]int{7}, 7, 2, 6).WithNext("/api/v1/patients", nil)
	if last.HasMore || last.Next != "" {
		t.Errorf("expected last page without next, got %+v", last)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if !p.HasPrevious() || p.PreviousOffset() != 0 {
		t.Errorf("unexpected previous navigation for %+v", p)
	}
	if !p.HasNext(16) || p.HasNext(15) {
		t.Errorf("unexpected HasNext for %+v", p)
	}
}
