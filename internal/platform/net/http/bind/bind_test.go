package bind

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "labelscan/internal/platform/errors"
	kit "labelscan/internal/platform/testkit"
)

type networkBody struct {
	Online *bool `json:"online" validate:"required"`
}

type messageBody struct {
	Type string `json:"type" validate:"required,oneof=skip-waiting activate-now"`
}

func TestParseJSON_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/network", strings.NewReader(`{"online":false}`))
	got, err := ParseJSON[networkBody](req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Online == nil || *got.Online {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Failures(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		code   perr.ErrorCode
	}{
		{"empty body", http.MethodPost, "", perr.ErrorCodeJSON},
		{"invalid json", http.MethodPost, `{"type":`, perr.ErrorCodeJSON},
		{"unknown field", http.MethodPost, `{"type":"skip-waiting","x":1}`, perr.ErrorCodeJSON},
		{"trailing data", http.MethodPost, `{"type":"skip-waiting"} {}`, perr.ErrorCodeJSON},
		{"missing required", http.MethodPost, `{}`, perr.ErrorCodeValidation},
		{"not in oneof", http.MethodPost, `{"type":"reload"}`, perr.ErrorCodeValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(c.method, "/", strings.NewReader(c.body))
			_, err := ParseJSON[messageBody](req)
			if perr.CodeOf(err) != c.code {
				t.Fatalf("code = %v, want %v (%v)", perr.CodeOf(err), c.code, err)
			}
		})
	}
}

func TestParseJSON_EmptyBodyTolerantForSafeMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	got, err := ParseJSON[messageBody](req)
	if err != nil || got != (messageBody{}) {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestParseJSON_AllowEmptyBody(t *testing.T) {
	type note struct {
		Note string `json:"note"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	got, err := ParseJSON[note](req, JSONOptions{AllowEmptyBody: true, MaxBytes: 16})
	if err != nil || got != (note{}) {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestParseJSON_MaxBytes(t *testing.T) {
	body := `{"type":"` + strings.Repeat("a", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	_, err := ParseJSON[messageBody](req, JSONOptions{MaxBytes: 10, DisallowUnknown: true})
	if !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("expected JSON error for truncated body, got %v", err)
	}
}

func TestParseJSON_TrailingSeam(t *testing.T) {
	kit.Swap(t, &jsonMore, func(*json.Decoder) bool { return true })
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"skip-waiting"}`))
	if _, err := ParseJSON[messageBody](req); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("expected trailing data error, got %v", err)
	}
}

func TestParseJSON_InvalidValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`5`))
	if _, err := ParseJSON[int](req); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("expected JSON-coded error, got %v", err)
	}
}

func TestValidationMessages(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"reload"}`))
	_, err := ParseJSON[messageBody](req)
	e, ok := perr.As(err)
	if !ok || e.Field() != "type" {
		t.Fatalf("expected field type, got %v", err)
	}
	kit.MustContain(t, err.Error(), "type must be one of [skip-waiting activate-now]")

	type limits struct {
		Workers int `json:"workers" validate:"min=1,max=4"`
		Plain   int `validate:"min=1"`
		Hidden  int `json:"-" validate:"min=1"`
	}
	_, msg := ValidationFieldAndMessage(Get().Validator.Struct(limits{Workers: 9, Plain: 1, Hidden: 1}))
	if msg != "workers must be at most 4" {
		t.Fatalf("unexpected max message %q", msg)
	}
	field, _ := ValidationFieldAndMessage(Get().Validator.Struct(limits{Workers: 1, Plain: 0, Hidden: 1}))
	if field != "Plain" {
		t.Fatalf("untagged field should use struct name, got %q", field)
	}
	field, _ = ValidationFieldAndMessage(Get().Validator.Struct(limits{Workers: 1, Plain: 1}))
	if field != "Hidden" {
		t.Fatalf("dash-tagged field should use struct name, got %q", field)
	}
	if f, m := ValidationFieldAndMessage(errors.New("boom")); f != "" || m != "boom" {
		t.Fatalf("generic passthrough failed: %q %q", f, m)
	}
}

func TestJSONMiddleware(t *testing.T) {
	mw := JSON[messageBody]()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if p := FromContext[messageBody](r); p == nil || p.Type != "activate-now" {
			t.Fatalf("unexpected payload %+v", p)
		}
	})
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"activate-now"}`)))
	if !called {
		t.Fatalf("next not called")
	}

	rec = httptest.NewRecorder()
	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatalf("next called on error") })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if FromContext[messageBody](httptest.NewRequest(http.MethodGet, "/", nil)) != nil {
		t.Fatalf("expected nil payload without middleware")
	}
}

func TestRegisterValidation(t *testing.T) {
	if err := RegisterValidation("jpeg_name", func(fl FieldLevel) bool {
		s := strings.ToLower(fl.Field().String())
		return strings.HasSuffix(s, ".jpg") || strings.HasSuffix(s, ".jpeg")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	type file struct {
		Name string `json:"name" validate:"jpeg_name"`
	}
	if err := Get().Validator.Struct(file{Name: "label.JPG"}); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := Get().Validator.Struct(file{Name: "label.png"}); err == nil {
		t.Fatalf("expected failure")
	}
}
