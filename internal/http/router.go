package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Events    *EventHandler
	Attendees *AttendeeHandler
	Sync      *SyncHandler
	Health    *HealthHandler
	Metrics   http.Handler
	// Authenticate guards every route that acts on behalf of a principal.
	Authenticate func(http.Handler) http.Handler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protect := cfg.Authenticate
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	if cfg.Events != nil {
		handle("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		handle("/events/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/events/")
			id, sub, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}

			switch {
			case sub == "" && id == "search":
				onlyGet(w, r, cfg.Events.Search)
			case sub == "" && id == "upcoming":
				onlyGet(w, r, cfg.Events.Upcoming)
			case sub == "" && id == "categories":
				onlyGet(w, r, cfg.Events.Categories)
			case sub == "":
				switch r.Method {
				case http.MethodGet:
					cfg.Events.Get(w, r, id)
				case http.MethodPatch:
					cfg.Events.Update(w, r, id)
				case http.MethodDelete:
					cfg.Events.Delete(w, r, id)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
				}
			case sub == "attendees" && cfg.Attendees != nil:
				switch r.Method {
				case http.MethodGet:
					cfg.Attendees.List(w, r, id)
				case http.MethodPost:
					cfg.Attendees.Add(w, r, id)
				case http.MethodDelete:
					cfg.Attendees.Remove(w, r, id)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
				}
			default:
				http.NotFound(w, r)
			}
		})
		handle("/stats", func(w http.ResponseWriter, r *http.Request) {
			onlyGet(w, r, cfg.Events.Stats)
		})
	}

	if cfg.Attendees != nil {
		mux.HandleFunc("/invitations/respond", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodPost:
				cfg.Attendees.Respond(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Sync != nil {
		handle("/sync", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Sync.Sync(w, r)
		})
		handle("/activities", func(w http.ResponseWriter, r *http.Request) {
			onlyGet(w, r, cfg.Sync.Activities)
		})
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		onlyGet(w, r, cfg.Health.Healthz)
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func onlyGet(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	fn(w, r)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
