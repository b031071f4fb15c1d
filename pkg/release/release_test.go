package release_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/release"
)

var _ = Describe("Fetcher", func() {
	var (
		ctx           context.Context
		server        *httptest.Server
		releaseStatus int
		assetStatus   int
		assetName     string
		manifest      string
		assetHits     atomic.Int32
	)

	BeforeEach(func() {
		ctx = context.Background()
		releaseStatus = http.StatusOK
		assetStatus = http.StatusOK
		assetName = "latest.json"
		manifest = `{"version":"v0.9.0","notes":"fixes","platforms":{"darwin-x86_64":{"url":"https://example.com/app.tar.gz"}}}`
		assetHits.Store(0)

		mux := http.NewServeMux()
		mux.HandleFunc("/repos/lhlyu/tauri-chatgpt/releases/latest", func(w http.ResponseWriter, r *http.Request) {
			if releaseStatus != http.StatusOK {
				w.WriteHeader(releaseStatus)
				return
			}
			fmt.Fprintf(w, `{"tag_name":"v0.9.0","assets":[{"name":"app.dmg","browser_download_url":"%s/download/app.dmg"},{"name":%q,"browser_download_url":"%s/download/latest.json"}]}`,
				server.URL, assetName, server.URL)
		})
		mux.HandleFunc("/download/latest.json", func(w http.ResponseWriter, r *http.Request) {
			assetHits.Add(1)
			if assetStatus != http.StatusOK {
				w.WriteHeader(assetStatus)
				return
			}
			fmt.Fprint(w, manifest)
		})
		server = httptest.NewServer(mux)
	})

	AfterEach(func() {
		server.Close()
	})

	newFetcher := func() *release.Fetcher {
		return release.NewFetcher(
			server.URL+"/repos/lhlyu/tauri-chatgpt/releases/latest",
			"latest.json",
			server.Client(),
			zap.NewNop(),
		)
	}

	It("returns the manifest indented with four spaces in original key order", func() {
		out := newFetcher().Latest(ctx)

		Expect(out).To(Equal(`{
    "version": "v0.9.0",
    "notes": "fixes",
    "platforms": {
        "darwin-x86_64": {
            "url": "https://example.com/app.tar.gz"
        }
    }
}`))
	})

	It("degrades to an empty object when the release lookup fails", func() {
		releaseStatus = http.StatusForbidden

		Expect(newFetcher().Latest(ctx)).To(Equal(release.EmptyManifest))
		Expect(assetHits.Load()).To(BeZero())
	})

	It("degrades to an empty object when the download fails", func() {
		assetStatus = http.StatusNotFound

		Expect(newFetcher().Latest(ctx)).To(Equal("{}"))
		Expect(assetHits.Load()).To(Equal(int32(1)))
	})

	It("degrades to an empty object when no asset matches", func() {
		assetName = "other.json"

		Expect(newFetcher().Latest(ctx)).To(Equal("{}"))
		Expect(assetHits.Load()).To(BeZero())
	})

	It("degrades to an empty object when the manifest is not json", func() {
		manifest = "<html>rate limited</html>"

		Expect(newFetcher().Latest(ctx)).To(Equal("{}"))
	})

	It("degrades to an empty object when the upstream is unreachable", func() {
		f := release.NewFetcher("http://127.0.0.1:1/unreachable", "latest.json", nil, nil)

		Expect(f.Latest(ctx)).To(Equal("{}"))
	})
})
