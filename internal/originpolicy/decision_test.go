package originpolicy

import (
	"reflect"
	"testing"
)

func TestEvaluate(t *testing.T) {
	list := AllowList{"https://a.example.com", "https://b.example.com"}

	tests := []struct {
		name   string
		list   AllowList
		origin string
		want   Decision
	}{
		{
			name:   "no origin header is allowed without echo",
			list:   list,
			origin: "",
			want:   Decision{Allowed: true},
		},
		{
			name:   "first entry matches",
			list:   list,
			origin: "https://a.example.com",
			want:   Decision{Allowed: true, Origin: "https://a.example.com"},
		},
		{
			name:   "second entry matches",
			list:   list,
			origin: "https://b.example.com",
			want:   Decision{Allowed: true, Origin: "https://b.example.com"},
		},
		{
			name:   "unlisted origin denied",
			list:   list,
			origin: "https://evil.example.com",
			want:   Decision{Reason: ReasonNotAllowlisted},
		},
		{
			name:   "trailing slash denied",
			list:   list,
			origin: "https://a.example.com/",
			want:   Decision{Reason: ReasonNotAllowlisted},
		},
		{
			name:   "empty list denies every origin",
			list:   AllowList{},
			origin: "https://a.example.com",
			want:   Decision{Reason: ReasonNotAllowlisted},
		},
		{
			name:   "empty list still allows absent origin",
			list:   AllowList{},
			origin: "",
			want:   Decision{Allowed: true},
		},
		{
			name:   "nil list denies",
			list:   nil,
			origin: "https://a.example.com",
			want:   Decision{Reason: ReasonNotAllowlisted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.list, tt.origin); got != tt.want {
				t.Errorf("Evaluate(%v, %q) = %+v, want %+v", tt.list, tt.origin, got, tt.want)
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	tests := []struct {
		name        string
		decision    Decision
		credentials bool
		want        map[string]string
	}{
		{
			name:        "allowed with credentials",
			decision:    Decision{Allowed: true, Origin: "https://a.example.com"},
			credentials: true,
			want: map[string]string{
				"Access-Control-Allow-Origin":      "https://a.example.com",
				"Access-Control-Allow-Credentials": "true",
			},
		},
		{
			name:        "allowed without credentials",
			decision:    Decision{Allowed: true, Origin: "https://a.example.com"},
			credentials: false,
			want: map[string]string{
				"Access-Control-Allow-Origin": "https://a.example.com",
			},
		},
		{
			name:        "allowed without origin emits nothing",
			decision:    Decision{Allowed: true},
			credentials: true,
			want:        nil,
		},
		{
			name:        "denied emits nothing",
			decision:    Decision{Reason: ReasonNotAllowlisted},
			credentials: true,
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.decision.Headers(tt.credentials); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Headers(%v) = %v, want %v", tt.credentials, got, tt.want)
			}
		})
	}
}

func TestHeadersNeverWildcard(t *testing.T) {
	// The echoed value is always the matched origin, so a wildcard can only
	// appear if it was deliberately allowlisted and sent as the Origin.
	list := Parse("https://a.example.com,https://b.example.com")
	for _, origin := range []string{"https://a.example.com", "https://b.example.com"} {
		headers := Evaluate(list, origin).Headers(true)
		if headers["Access-Control-Allow-Origin"] == "*" {
			t.Fatalf("wildcard emitted for origin %q", origin)
		}
		if headers["Access-Control-Allow-Origin"] != origin {
			t.Errorf("echo = %q, want %q", headers["Access-Control-Allow-Origin"], origin)
		}
	}
}

func TestProductionConfigEndToEnd(t *testing.T) {
	raw := " https://daten3.onrender.com , https://www.daten3.onrender.com "
	list := Derive(&raw, DefaultOrigins)

	want := AllowList{"https://daten3.onrender.com", "https://www.daten3.onrender.com"}
	if !reflect.DeepEqual(list, want) {
		t.Fatalf("derived list = %v, want %v", list, want)
	}

	allowed := Evaluate(list, "https://daten3.onrender.com")
	if !allowed.Allowed {
		t.Error("https://daten3.onrender.com denied, want allowed")
	}
	headers := allowed.Headers(true)
	if headers["Access-Control-Allow-Origin"] != "https://daten3.onrender.com" {
		t.Errorf("echo = %q, want the request origin", headers["Access-Control-Allow-Origin"])
	}
	if headers["Access-Control-Allow-Credentials"] != "true" {
		t.Errorf("credentials header = %q, want %q", headers["Access-Control-Allow-Credentials"], "true")
	}

	denied := Evaluate(list, "https://evil.example.com")
	if denied.Allowed {
		t.Error("https://evil.example.com allowed, want denied")
	}
	if len(denied.Headers(true)) != 0 {
		t.Errorf("denied decision produced headers: %v", denied.Headers(true))
	}
}

func TestOutcome(t *testing.T) {
	if got := (Decision{Allowed: true}).Outcome(); got != "allowed" {
		t.Errorf("Outcome() = %q, want %q", got, "allowed")
	}
	if got := (Decision{}).Outcome(); got != "denied" {
		t.Errorf("Outcome() = %q, want %q", got, "denied")
	}
}
