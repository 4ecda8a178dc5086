package gateway

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"orderhub/internal/config"
)

// NewRouter is the HTTP front door: it proxies order submission to the
// orders service and exposes each consumer's dead-letter view under one host.
func NewRouter(cfg *config.GatewayConfig) (http.Handler, error) {
	ordersURL, err := url.Parse(cfg.OrdersServiceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse orders service URL (%s): %w", cfg.OrdersServiceURL, err)
	}
	stockURL, err := url.Parse(cfg.StockAdminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stock admin URL (%s): %w", cfg.StockAdminURL, err)
	}
	emailURL, err := url.Parse(cfg.EmailAdminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email admin URL (%s): %w", cfg.EmailAdminURL, err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	orderProxy := createProxy(ordersURL)
	stockProxy := createProxy(stockURL)
	emailProxy := createProxy(emailURL)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", orderProxy.ServeHTTP)
		r.Get("/", orderProxy.ServeHTTP)
		r.Get("/{orderID}", orderProxy.ServeHTTP)
	})

	r.Route("/stock", func(r chi.Router) {
		r.Get("/deadletters", stripPrefix("/stock", stockProxy))
	})
	r.Route("/email", func(r chi.Router) {
		r.Get("/deadletters", stripPrefix("/email", emailProxy))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Gateway is up"))
	})

	return r, nil
}

func stripPrefix(prefix string, h http.Handler) http.HandlerFunc {
	return http.StripPrefix(prefix, h).ServeHTTP
}

func createProxy(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.Director = func(req *http.Request) {
		req.URL.Host = target.Host
		req.URL.Scheme = target.Scheme
		req.RequestURI = req.URL.RequestURI()

		if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			if prior, ok := req.Header["X-Forwarded-For"]; ok {
				clientIP = strings.Join(prior, ", ") + ", " + clientIP
			}
			req.Header.Set("X-Forwarded-For", clientIP)
		}
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("Proxy error for request %s to %s: %v", r.URL.Path, target.String(), err)

		if os.IsTimeout(err) {
			renderJSONError(w, "Gateway Timeout", http.StatusGatewayTimeout)
		} else if _, ok := err.(net.Error); ok {
			renderJSONError(w, "Service Unavailable", http.StatusServiceUnavailable)
		} else {
			renderJSONError(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}

	return proxy
}

func renderJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"error": "%s", "code": %d}`, message, statusCode)
}
