package cryptocompare

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "net/url"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "coindata/internal/httpx"
    "coindata/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, cfg Config) *Provider {
    t.Helper()
    srv := httptest.NewServer(handler)
    t.Cleanup(srv.Close)
    cfg.URL = srv.URL
    cfg.Enabled = true
    return New(cfg, httpx.New(2*time.Second, true), nil, zerolog.Nop())
}

func TestFetchBatch(t *testing.T) {
    var gotQuery string
    p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/pricemultifull" {
            t.Errorf("unexpected path %s", r.URL.Path)
        }
        gotQuery = r.URL.RawQuery
        fmt.Fprint(w, `{"RAW":{
            "BTC":{"USD":{"PRICE":50123.45,"CHANGEPCT24HOUR":2.15}},
            "ETH":{"USD":{"PRICE":3001.20,"CHANGEPCT24HOUR":-0.50}}
        }}`)
    }, Config{APIKey: "secret"})

    got, err := p.Fetch(context.Background(), []provider.Instrument{
        {Symbol: "BTC", Name: "Bitcoin"}, {Symbol: "eth"}, {Symbol: "NOPE"},
    })
    if err != nil {
        t.Fatalf("Fetch: %v", err)
    }
    if len(got) != 2 {
        t.Fatalf("want 2 quotes in one batch, got %v", got)
    }
    if got["BTC"].Price != 50123.45 || got["BTC"].Name != "Bitcoin" {
        t.Errorf("BTC quote: %+v", got["BTC"])
    }
    if got["eth"].Price != 3001.20 {
        t.Errorf("symbol casing must be preserved on the result key: %+v", got)
    }

    q, err := url.ParseQuery(gotQuery)
    if err != nil {
        t.Fatalf("query: %v", err)
    }
    if q.Get("fsyms") != "BTC,ETH" || q.Get("tsyms") != "USD" || q.Get("api_key") != "secret" {
        t.Errorf("unexpected query %q", gotQuery)
    }
}

func TestFetchRateLimited(t *testing.T) {
    p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
        w.WriteHeader(http.StatusTooManyRequests)
    }, Config{})

    got, err := p.Fetch(context.Background(), []provider.Instrument{{Symbol: "BTC"}})
    if err == nil {
        t.Fatal("a rate-limited batch must fail as a whole")
    }
    if len(got) != 0 {
        t.Fatalf("want no quotes, got %v", got)
    }
}

func TestFetchEmptyAndDisabled(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
        t.Error("no request expected")
    }))
    t.Cleanup(srv.Close)

    p := New(Config{URL: srv.URL, Enabled: true}, httpx.New(time.Second, true), nil, zerolog.Nop())
    if got, err := p.Fetch(context.Background(), nil); err != nil || len(got) != 0 {
        t.Fatalf("empty request set: got %v err %v", got, err)
    }

    p = New(Config{URL: srv.URL, Enabled: false}, httpx.New(time.Second, true), nil, zerolog.Nop())
    if got, err := p.Fetch(context.Background(), []provider.Instrument{{Symbol: "BTC"}}); err != nil || len(got) != 0 {
        t.Fatalf("disabled provider: got %v err %v", got, err)
    }
}
