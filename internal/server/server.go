// Package server publishes the birthday feed on the loopback interface.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// representation is one rendered body with its validator.
type representation struct {
	data        []byte
	etag        string
	contentType string
}

// snapshot is everything served for one reconcile.
type snapshot struct {
	feed         representation
	upcoming     representation
	lastModified string // RFC1123, as HTTP headers require
}

// UpcomingItem is the JSON view of one upcoming birthday.
type UpcomingItem struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	LunarMonth int      `json:"lunarMonth"`
	LunarDay   int      `json:"lunarDay"`
	Next       string   `json:"next"`
	DaysLeft   int      `json:"daysLeft"`
	Reminders  []string `json:"reminders"`
}

// FeedServer serves the iCalendar feed and the upcoming list.
type FeedServer struct {
	// current is swapped atomically on every reconcile; GETs never block on it.
	current atomic.Pointer[snapshot]
	Port    string
}

// NewFeedServer creates a server for the given loopback port.
func NewFeedServer(port string) *FeedServer {
	return &FeedServer{
		Port: port,
	}
}

// Handler returns the routing table.
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteRoot, s.handleFeed)
	mux.HandleFunc(config.RouteFeed, s.handleFeed)
	mux.HandleFunc(config.RouteUpcoming, s.handleUpcoming)
	return mux
}

// Start listens on 127.0.0.1 and blocks until the context is cancelled.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return fmt.Errorf(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update replaces the served feed and upcoming list in one step.
func (s *FeedServer) Update(feed []byte, upcoming []engine.UpcomingBirthday) error {
	items := make([]UpcomingItem, 0, len(upcoming))
	for _, u := range upcoming {
		reminders := make([]string, 0, len(u.Triggers))
		for _, trig := range u.Triggers {
			reminders = append(reminders, trig.FireAt.Format(time.RFC3339))
		}
		items = append(items, UpcomingItem{
			ID:         u.Record.ID,
			Name:       u.Record.Name,
			LunarMonth: u.Record.LunarMonth,
			LunarDay:   u.Record.LunarDay,
			Next:       u.NextOccurrence.Format(config.DateFormatDisplay),
			DaysLeft:   u.DaysLeft,
			Reminders:  reminders,
		})
	}

	list, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrJSONEncode, err)
	}

	snap := &snapshot{
		feed:         newRepresentation(feed, config.MimeTextCalendar),
		upcoming:     newRepresentation(list, config.MimeJSON),
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	}
	s.current.Store(snap)

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(feed),
		config.LogKeyETag, snap.feed.etag,
		config.LogKeyRecords, len(items),
	)
	return nil
}

func newRepresentation(data []byte, contentType string) representation {
	hash := sha256.Sum256(data)
	return representation{
		data:        data,
		etag:        fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		contentType: contentType,
	}
}

func (s *FeedServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(snap *snapshot) representation { return snap.feed })
}

func (s *FeedServer) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(snap *snapshot) representation { return snap.upcoming })
}

// serve writes one representation with conditional GET support.
func (s *FeedServer) serve(w http.ResponseWriter, r *http.Request, pick func(*snapshot) representation) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	snap := s.current.Load()
	if snap == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}
	rep := pick(snap)

	w.Header().Set(config.HeaderContentType, rep.contentType)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, rep.etag)
	w.Header().Set(config.HeaderLastModified, snap.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == rep.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, snap.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(rep.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}
