package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type forecastQuery struct {
	Location string `query:"location" json:"location" validate:"required"`
	Days     int    `query:"days" json:"days" validate:"omitempty,gte=1,lte=365"`
	Source   string `query:"source" json:"source" validate:"omitempty,oneof=csv json"`
	Model    string `json:"model_name" validate:"omitempty,max=4"`
}

func bind(t *testing.T, req *http.Request) []ValidationError {
	t.Helper()
	c := echo.New().NewContext(req, httptest.NewRecorder())
	return BindRequest(c, &forecastQuery{})
}

func TestBindRequestValid(t *testing.T) {
	if errs := bind(t, httptest.NewRequest(http.MethodGet, "/?location=paris&days=3", nil)); errs != nil {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestBindRequestNamesFieldsAsSent(t *testing.T) {
	errs := bind(t, httptest.NewRequest(http.MethodGet, "/?days=400&source=xml", nil))
	if len(errs) != 3 {
		t.Fatalf("errors = %+v", errs)
	}
	want := map[string]string{"location": "ERR_REQUIRED", "days": "ERR_LTE", "source": "ERR_ONEOF"}
	for _, e := range errs {
		if want[e.Field] != e.Code {
			t.Fatalf("unexpected %+v", e)
		}
	}
	if errs[1].Params["max"] != "365" || errs[1].Message != "days must be at most 365" {
		t.Fatalf("days error = %+v", errs[1])
	}

	body := strings.NewReader(`{"location":"oslo","model_name":"too-long"}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	errs = bind(t, req)
	if len(errs) != 1 || errs[0].Field != "model_name" || errs[0].Message != "model_name must be at most 4 characters" {
		t.Fatalf("json field error = %+v", errs)
	}
}

func TestBindRequestRejectsMalformedInput(t *testing.T) {
	errs := bind(t, httptest.NewRequest(http.MethodGet, "/?location=paris&days=three", nil))
	if len(errs) != 1 || errs[0].Code != "ERR_BIND" || errs[0].Message == "" {
		t.Fatalf("errors = %+v", errs)
	}
}
