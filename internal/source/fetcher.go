package source

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher 批量页面抓取器
// 批内并发抓取，单页失败不中断，失败页在结果中缺席
type Fetcher struct {
	client      *resty.Client
	concurrency int
}

// NewFetcher 创建抓取器，concurrency 为批内并发上限
func NewFetcher(concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	client := resty.New().
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	return &Fetcher{client: client, concurrency: concurrency}
}

// FetchHTMLBatch 并发抓取一批 URL，返回 url -> html
func (f *Fetcher) FetchHTMLBatch(ctx context.Context, urls []string) map[string]string {
	results := make(map[string]string, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.concurrency)

	for _, url := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()

			html, err := f.fetchOne(ctx, u)
			if err != nil {
				log.Printf("[Fetcher] 抓取失败 %s: %v", u, err)
				return
			}
			mu.Lock()
			results[u] = html
			mu.Unlock()
		}(url)
	}
	wg.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	return resp.String(), nil
}
