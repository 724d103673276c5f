package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>NSE - Annual Reports</title>
<item>
  <title>Infosys Limited</title>
  <link>https://nsearchives.nseindia.com/annual_reports/AR_INFY_2024_2025.pdf</link>
  <description><![CDATA[<p>Annual Report for the year <b>2024-25</b></p>]]></description>
  <pubDate>Mon, 02 Jun 2025 18:30:00 +0530</pubDate>
</item>
<item>
  <title>RELIANCE - Reliance Industries Limited</title>
  <link>https://nsearchives.nseindia.com/annual_reports/AR_RELIANCE_2024_2025.pdf</link>
  <description>Annual Report for the year 2024 - 25</description>
  <pubDate>Fri, 11 Jul 2025 20:00:00 +0530</pubDate>
</item>
<item>
  <title>Infosys Limited</title>
  <link>https://nsearchives.nseindia.com/annual_reports/AR_INFY_2023_2024.pdf</link>
  <description>Annual Report for the year 2023-24</description>
  <pubDate>Tue, 04 Jun 2024 18:30:00 +0530</pubDate>
</item>
</channel></rss>`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-agent", 5*time.Second, nil)
}

func TestRecentNewestFirst(t *testing.T) {
	c := newTestClient(t)
	got, err := c.Recent(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d filings, want 3", len(got))
	}
	if got[0].Company != "Reliance Industries Limited" {
		t.Errorf("first = %+v, want Reliance (newest)", got[0])
	}
	if got[0].YearLabel != "2024-25" {
		t.Errorf("YearLabel = %q, want 2024-25", got[0].YearLabel)
	}
	if got[1].Summary != "Annual Report for the year 2024-25" {
		t.Errorf("Summary = %q, want tags stripped", got[1].Summary)
	}
	if !got[1].Published.After(got[2].Published) {
		t.Errorf("not sorted newest first: %v then %v", got[1].Published, got[2].Published)
	}
}

func TestRecentFilters(t *testing.T) {
	c := newTestClient(t)
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"company", Query{Company: "infosys"}, []string{"AR_INFY_2024_2025.pdf", "AR_INFY_2023_2024.pdf"}},
		{"company and year", Query{Company: "Infosys", Year: 2023}, []string{"AR_INFY_2023_2024.pdf"}},
		{"year", Query{Year: 2024}, []string{"AR_RELIANCE_2024_2025.pdf", "AR_INFY_2024_2025.pdf", "AR_INFY_2023_2024.pdf"}},
		{"limit", Query{Limit: 1}, []string{"AR_RELIANCE_2024_2025.pdf"}},
		{"no match", Query{Company: "wipro"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Recent(context.Background(), tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d filings, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, f := range got {
				if want := "https://nsearchives.nseindia.com/annual_reports/" + tt.want[i]; f.URL != want {
					t.Errorf("filing[%d] = %s, want %s", i, f.URL, want)
				}
			}
		})
	}
}

func TestRecentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := New(srv.URL, "x", time.Second, nil)
	if _, err := c.Recent(context.Background(), Query{}); err == nil {
		t.Error("Recent on 404 feed: want error")
	}
}

func TestRecentCachesFeed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "test-agent", 5*time.Second, nil).WithCache(time.Minute)

	all, err := c.Recent(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	infy, err := c.Recent(context.Background(), Query{Company: "infosys", Limit: 1})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("feed fetched %d times, want 1", n)
	}
	if len(all) != 3 || len(infy) != 1 || infy[0].YearLabel != "2024-25" {
		t.Errorf("all = %d filings, infosys = %+v", len(all), infy)
	}

	again, _ := c.Recent(context.Background(), Query{})
	if again[0].URL != all[0].URL {
		t.Errorf("cached read reordered: %q vs %q", again[0].URL, all[0].URL)
	}

	if _, err := c.Recent(context.Background(), Query{Refresh: true}); err != nil {
		t.Fatalf("Recent(refresh): %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("refresh fetched %d times in total, want 2", n)
	}
}
