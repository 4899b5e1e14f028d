package objectstore

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitevent/internal/models"
)

// concurrency bounds parallel bucket calls per request.
const concurrency = 4

// UploadAll uploads files concurrently. A failed upload never aborts the
// others; each file gets a result in input order.
func UploadAll(ctx context.Context, gw Gateway, folder string, files []models.File) []models.UploadResult {
	results := make([]models.UploadResult, len(files))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go(func() error {
			results[i].FileName = f.Name
			url, err := gw.Upload(ctx, folder, f)
			if err != nil {
				results[i].Error = "upload failed"
				if IsUnavailable(err) {
					results[i].Error = "storage unavailable"
				}
				return nil
			}
			results[i].URL = url
			return nil
		})
	}
	g.Wait()

	return results
}

// URLs returns the URLs of the successful uploads.
func URLs(results []models.UploadResult) []string {
	var urls []string
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// DeleteAll deletes urls concurrently and returns the ones that failed.
func DeleteAll(ctx context.Context, gw Gateway, urls []string) []string {
	failed := make([]bool, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if err := gw.Delete(ctx, u); err != nil {
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	var out []string
	for i, u := range urls {
		if failed[i] {
			out = append(out, u)
		}
	}
	return out
}
