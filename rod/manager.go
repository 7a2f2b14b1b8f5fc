package rod

import (
	"sync"

	"github.com/fwojciec/urlkeep"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultMaxPages is how many pages one browser opens before new pages go
// to a fresh browser.
const DefaultMaxPages = 50

// session is one Chrome process.
type session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opened   int // pages handed out over its lifetime
	open     int // pages not yet released
}

func launchSession() (*session, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)

	u, err := l.Launch()
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to launch browser")
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to connect to browser")
	}
	return &session{browser: b, launcher: l}, nil
}

func (s *session) close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	return err
}

// BrowserManager hands out pages from a headless Chrome. After maxPages
// pages a new browser takes over; the old one keeps serving the pages it
// already opened and is shut down when the last is released. Chrome's
// resident memory never shrinks, so long runs need the turnover.
// It is safe for concurrent use.
type BrowserManager struct {
	maxPages int

	mu      sync.Mutex
	current *session
	retired map[*session]struct{}
	closed  bool
}

// NewBrowserManager launches a headless browser that is replaced every
// maxPages pages; zero keeps one browser for good. Close must be called
// when the BrowserManager is no longer needed.
func NewBrowserManager(maxPages int) (*BrowserManager, error) {
	s, err := launchSession()
	if err != nil {
		return nil, err
	}
	return &BrowserManager{
		maxPages: maxPages,
		current:  s,
		retired:  make(map[*session]struct{}),
	}, nil
}

// Page opens a blank page. The returned release func closes it and must be
// called exactly once the page is no longer used.
func (bm *BrowserManager) Page() (*rod.Page, func(), error) {
	s, err := bm.acquire()
	if err != nil {
		return nil, nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		bm.release(s)
		return nil, nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to open page")
	}

	var once sync.Once
	return page, func() {
		once.Do(func() {
			_ = page.Close()
			bm.release(s)
		})
	}, nil
}

// acquire reserves a page on the current browser, first replacing a browser
// that reached maxPages. A browser that fails to launch leaves the old one
// in service.
func (bm *BrowserManager) acquire() (*session, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, urlkeep.Errorf(urlkeep.EINTERNAL, "browser closed")
	}
	if bm.maxPages > 0 && bm.current.opened >= bm.maxPages {
		if next, err := launchSession(); err == nil {
			bm.retire(bm.current)
			bm.current = next
		}
	}
	bm.current.opened++
	bm.current.open++
	return bm.current, nil
}

// retire takes s out of service. Must be called with mu held.
func (bm *BrowserManager) retire(s *session) {
	if s.open == 0 {
		_ = s.close()
		return
	}
	bm.retired[s] = struct{}{}
}

func (bm *BrowserManager) release(s *session) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	s.open--
	if _, ok := bm.retired[s]; ok && s.open == 0 {
		delete(bm.retired, s)
		_ = s.close()
	}
}

// Browsers reports how many browsers are running, including retired ones
// still serving pages.
func (bm *BrowserManager) Browsers() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	n := len(bm.retired)
	if bm.current != nil {
		n++
	}
	return n
}

// Close shuts down every browser, including pages still open. Close is safe
// to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true

	var err error
	for s := range bm.retired {
		_ = s.close()
		delete(bm.retired, s)
	}
	if bm.current != nil {
		err = bm.current.close()
		bm.current = nil
	}
	return err
}
