package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser fetches pages with a long-lived headless Chrome and extracts
// the readable content. Construct once; call Fetch per URL; Close on
// shutdown.
type Browser struct {
	allocCtx  context.Context
	cancelAll context.CancelFunc
	brCtx     context.Context
	cancelBr  context.CancelFunc

	defaultTO time.Duration
}

// NewBrowser starts the reusable headless browser. userAgent is
// optional.
func NewBrowser(defaultTO time.Duration, userAgent string) (*Browser, error) {
	if defaultTO <= 0 {
		defaultTO = 30 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)

	return &Browser{
		allocCtx:  actx,
		cancelAll: cancelAlloc,
		brCtx:     bctx,
		cancelBr:  cancelBr,
		defaultTO: defaultTO,
	}, nil
}

func (b *Browser) Fetch(ctx context.Context, link string, opts Options) (Result, error) {
	if strings.TrimSpace(link) == "" {
		return Result{}, errors.New("invalid url")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = b.defaultTO
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := b.outerHTML(ctx, link)
	if err != nil {
		return Result{}, err
	}
	if opts.Raw {
		return Result{URL: link, HTML: html, Status: 200}, nil
	}
	ext, err := Extract(html, link)
	if err != nil {
		return Result{}, err
	}
	return Result{
		URL:    link,
		Title:  ext.Title,
		Text:   ext.Text,
		HTML:   ext.HTML,
		Status: 200,
	}, nil
}

func (b *Browser) Close() error {
	if b.cancelBr != nil {
		b.cancelBr()
	}
	if b.cancelAll != nil {
		b.cancelAll()
	}
	return nil
}

func (b *Browser) outerHTML(ctx context.Context, link string) (string, error) {
	runCtx, cancel := context.WithCancel(b.brCtx)
	defer cancel()
	go func() {
		<-ctx.Done()
		cancel()
	}()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

var _ Fetcher = (*Browser)(nil)
