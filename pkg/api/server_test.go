package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/kv"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"gopkg.in/h2non/gock.v1"
)

type brokenStore struct{ kv.Store }

func (brokenStore) Set(ctx context.Context, ns kv.Namespace, key string, value string) error {
	return errors.New("disk full")
}

func newTestServer(store kv.Store) (http.Handler, *fleet.Registry) {
	httpClient := &http.Client{Transport: &http.Transport{}}
	gock.InterceptClient(httpClient)

	config := &fleet.Config{}
	promRegistry := prometheus.NewRegistry()
	registry := fleet.NewRegistry(zap.NewNop(), config, store)
	client := agent.NewClient(zap.NewNop(), &agent.Config{}, httpClient)
	service := fleet.NewService(zap.NewNop(), config, registry, client, promRegistry)

	server := NewServer(zap.NewNop(), &Config{}, registry, service, promRegistry)
	return server.Handler(), registry
}

func do(h http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, r)
	return rw
}

func decode[T any](rw *httptest.ResponseRecorder) T {
	var v T
	json.Unmarshal(rw.Body.Bytes(), &v)
	return v
}

func TestPisAPI(t *testing.T) {
	Convey("Given the gateway with an empty registry", t, func() {
		h, _ := newTestServer(kv.NewInMemoryStore())
		Reset(func() { gock.Off() })

		Convey("GET /api/pis returns an empty array", func() {
			rw := do(h, "GET", "/api/pis", "")
			So(rw.Code, ShouldEqual, 200)
			So(strings.TrimSpace(rw.Body.String()), ShouldEqual, "[]")
		})

		Convey("POST /api/pis adds an agent", func() {
			rw := do(h, "POST", "/api/pis", `{"ip":"10.0.0.5","name":"Kiosk1"}`)
			So(rw.Code, ShouldEqual, 200)

			resp := decode[pisResponse](rw)
			So(resp.Success, ShouldBeTrue)
			So(resp.Pis, ShouldResemble, []agent.Agent{{IP: "10.0.0.5", Name: "Kiosk1"}})

			Convey("and rejects the same IP again", func() {
				rw := do(h, "POST", "/api/pis", `{"ip":"10.0.0.5"}`)
				So(rw.Code, ShouldEqual, 400)

				resp := decode[errorResponse](rw)
				So(resp.Success, ShouldBeFalse)
				So(resp.Error, ShouldEqual, "Pi with this IP already exists")

				list := decode[[]agent.Agent](do(h, "GET", "/api/pis", ""))
				So(list, ShouldResemble, []agent.Agent{{IP: "10.0.0.5", Name: "Kiosk1"}})
			})

			Convey("and DELETE removes it", func() {
				rw := do(h, "DELETE", "/api/pis/10.0.0.5", "")
				So(rw.Code, ShouldEqual, 200)
				resp := decode[pisResponse](rw)
				So(resp.Success, ShouldBeTrue)
				So(resp.Pis, ShouldBeEmpty)
			})

			Convey("and DELETE of an unknown IP is not an error", func() {
				rw := do(h, "DELETE", "/api/pis/10.9.9.9", "")
				So(rw.Code, ShouldEqual, 200)
				So(decode[pisResponse](rw).Pis, ShouldHaveLength, 1)
			})

			Convey("and PUT renames it", func() {
				rw := do(h, "PUT", "/api/pis/10.0.0.5/name", `{"name":"Lobby"}`)
				So(rw.Code, ShouldEqual, 200)

				resp := decode[map[string]any](rw)
				So(resp["success"], ShouldEqual, true)
				So(resp["message"], ShouldEqual, "Name updated")
				So(resp["name"], ShouldEqual, "Lobby")
			})

			Convey("and PUT without a name is rejected", func() {
				rw := do(h, "PUT", "/api/pis/10.0.0.5/name", `{}`)
				So(rw.Code, ShouldEqual, 400)
				So(decode[errorResponse](rw).Error, ShouldEqual, "No name provided")
			})
		})

		Convey("POST /api/pis without a name uses the IP", func() {
			rw := do(h, "POST", "/api/pis", `{"ip":"10.0.0.6"}`)
			So(rw.Code, ShouldEqual, 200)
			So(decode[pisResponse](rw).Pis[0].Name, ShouldEqual, "10.0.0.6")
		})

		Convey("POST /api/pis without an IP is rejected", func() {
			rw := do(h, "POST", "/api/pis", `{"name":"nameless"}`)
			So(rw.Code, ShouldEqual, 400)
			So(decode[errorResponse](rw).Success, ShouldBeFalse)
		})

		Convey("POST /api/pis with a malformed body is rejected", func() {
			rw := do(h, "POST", "/api/pis", `{"ip":`)
			So(rw.Code, ShouldEqual, 400)
		})

		Convey("PUT on an unknown IP is not found", func() {
			rw := do(h, "PUT", "/api/pis/10.9.9.9/name", `{"name":"Ghost"}`)
			So(rw.Code, ShouldEqual, 404)
			So(decode[errorResponse](rw).Error, ShouldEqual, "Pi not found")
		})
	})

	Convey("Given the gateway over a failing store", t, func() {
		h, _ := newTestServer(brokenStore{kv.NewInMemoryStore()})
		Reset(func() { gock.Off() })

		Convey("a failed write is a server error", func() {
			rw := do(h, "POST", "/api/pis", `{"ip":"10.0.0.5"}`)
			So(rw.Code, ShouldEqual, 500)
			So(decode[errorResponse](rw).Error, ShouldContainSubstring, "disk full")
		})
	})
}

func TestStatusAPI(t *testing.T) {
	Convey("Given two registered agents, one unreachable", t, func() {
		h, registry := newTestServer(kv.NewInMemoryStore())
		Reset(func() { gock.Off() })

		ctx := context.Background()
		name := "Kiosk1"
		_, err := registry.Add(ctx, "10.0.0.5", &name)
		So(err, ShouldBeNil)
		_, err = registry.Add(ctx, "10.0.0.6", nil)
		So(err, ShouldBeNil)

		gock.New("http://10.0.0.6:5000").
			Get("/status").
			Reply(200).
			JSON(map[string]any{"url": "http://example.com"})
		gock.New("http://10.0.0.5:5000").
			Get("/status").
			ReplyError(errors.New("connect: connection refused"))

		Convey("GET /api/status reports both in registry order", func() {
			rw := do(h, "GET", "/api/status", "")
			So(rw.Code, ShouldEqual, 200)

			statuses := decode[[]agent.StatusOutcome](rw)
			So(statuses, ShouldResemble, []agent.StatusOutcome{
				{IP: "10.0.0.5", Name: "Kiosk1", Online: false, Data: map[string]any{}},
				{IP: "10.0.0.6", Name: "10.0.0.6", Online: true, Data: map[string]any{"url": "http://example.com"}},
			})
		})
	})
}

func TestCommandAPI(t *testing.T) {
	Convey("Given the gateway", t, func() {
		h, _ := newTestServer(kv.NewInMemoryStore())
		Reset(func() { gock.Off() })

		Convey("a single URL change proxies the agent reply", func() {
			gock.New("http://10.0.0.5:5000").
				Post("/url").
				JSON(map[string]string{"url": "http://example.com/menu"}).
				Reply(200).
				JSON(map[string]any{"success": true, "url": "http://example.com/menu"})

			rw := do(h, "POST", "/api/command/10.0.0.5/url", `{"url":"http://example.com/menu"}`)
			So(rw.Code, ShouldEqual, 200)
			So(decode[map[string]any](rw)["url"], ShouldEqual, "http://example.com/menu")
		})

		Convey("an agent error status is passed through", func() {
			gock.New("http://10.0.0.5:5000").
				Post("/reboot").
				Reply(403).
				JSON(map[string]any{"success": false, "error": "not allowed"})

			rw := do(h, "POST", "/api/command/10.0.0.5/reboot", "")
			So(rw.Code, ShouldEqual, 403)
			So(decode[map[string]any](rw)["error"], ShouldEqual, "not allowed")
		})

		Convey("an unreachable agent is a server error", func() {
			gock.New("http://10.0.0.5:5000").
				Post("/restart-browser").
				ReplyError(errors.New("connect: connection refused"))

			rw := do(h, "POST", "/api/command/10.0.0.5/restart-browser", "")
			So(rw.Code, ShouldEqual, 500)
			resp := decode[errorResponse](rw)
			So(resp.Success, ShouldBeFalse)
			So(resp.Error, ShouldContainSubstring, "connection refused")
		})

		Convey("a URL change without a URL is rejected", func() {
			rw := do(h, "POST", "/api/command/10.0.0.5/url", `{}`)
			So(rw.Code, ShouldEqual, 400)
		})

		Convey("an unknown command is not found", func() {
			rw := do(h, "POST", "/api/command/10.0.0.5/self-destruct", "")
			So(rw.Code, ShouldEqual, 404)
		})

		Convey("a bulk URL change returns outcomes in request order", func() {
			gock.New("http://10.0.0.5:5000").
				Post("/url").
				Reply(200).
				JSON(map[string]any{"success": true})
			gock.New("http://10.0.0.6:5000").
				Post("/url").
				ReplyError(errors.New("context deadline exceeded"))

			rw := do(h, "POST", "/api/command/bulk/url", `{"ips":["10.0.0.5","10.0.0.6"],"url":"http://example.com"}`)
			So(rw.Code, ShouldEqual, 200)

			outcomes := decode[[]map[string]any](rw)
			So(outcomes, ShouldHaveLength, 2)
			So(outcomes[0]["ip"], ShouldEqual, "10.0.0.5")
			So(outcomes[0]["success"], ShouldEqual, true)
			So(outcomes[0], ShouldContainKey, "response")
			So(outcomes[0], ShouldNotContainKey, "error")
			So(outcomes[1]["ip"], ShouldEqual, "10.0.0.6")
			So(outcomes[1]["success"], ShouldEqual, false)
			So(outcomes[1]["error"], ShouldContainSubstring, "deadline exceeded")
			So(outcomes[1], ShouldNotContainKey, "response")
		})

		Convey("a bulk restart with no targets returns an empty array", func() {
			rw := do(h, "POST", "/api/command/bulk/restart-browser", `{"ips":[]}`)
			So(rw.Code, ShouldEqual, 200)
			So(strings.TrimSpace(rw.Body.String()), ShouldEqual, "[]")
		})

		Convey("a bulk request with an invalid target is rejected", func() {
			rw := do(h, "POST", "/api/command/bulk/restart-browser", `{"ips":["not an ip!"]}`)
			So(rw.Code, ShouldEqual, 400)
		})

		Convey("metrics are exposed", func() {
			rw := do(h, "GET", "/metrics", "")
			So(rw.Code, ShouldEqual, 200)
		})
	})
}
