package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/piratepartyau/donate/pkg/donation"
	"github.com/piratepartyau/donate/pkg/model"
)

type Server struct {
	http.Server
}

type Config struct {
	// Port is a server port to listen to
	Port int `toml:"port"`
	// Bind a specific IP addresses for server
	// "*": bind all IP addresses which is default option
	// localhost or 127.0.0.1  bind a single IPv4 address
	BindAddress string `toml:"bind_address"`
	// Mode is the deployment mode rendered into every page
	Mode string `toml:"mode"`
	// TemplatesGlob locates the HTML views
	TemplatesGlob string `toml:"templates"`
	// StaticDir, when set, is served under /static
	StaticDir string `toml:"static_dir"`
}

func New(cfg Config, handler http.Handler) *Server {
	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	bindAddress := cfg.BindAddress
	if bindAddress == "*" {
		bindAddress = ""
	}

	srv := Server{}

	srv.Addr = fmt.Sprintf("%s:%d", bindAddress, port)
	srv.Handler = handler

	log.Debugf("using address: %s", srv.Addr)

	return &srv
}

type donationService interface {
	Submit(ctx context.Context, d *model.Donation) *donation.Result
}

type nonceIssuer interface {
	Issue(ctx context.Context) (*model.Nonce, error)
}

type Opts struct {
	// APIEndpoint and PublishableKey are embedded into the donation form so
	// the browser can tokenize the card against the processor directly
	APIEndpoint    string
	PublishableKey string
	// Mode is the deployment mode rendered into every page, e.g. "testing"
	Mode string
	// TemplatesGlob locates the HTML views, e.g. "templates/*.html"
	TemplatesGlob string
	// StaticDir, when set, is served under /static
	StaticDir string
}

// MakeHandlers builds the HTTP surface: GET / issues a nonce and renders the
// donation form, POST / runs one submission to exactly one terminal page.
func MakeHandlers(donations donationService, nonces nonceIssuer, opts Opts) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	if opts.TemplatesGlob != "" {
		r.LoadHTMLGlob(opts.TemplatesGlob)
	}

	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}

	r.GET("/api/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/", func(c *gin.Context) {
		nonce, err := nonces.Issue(c.Request.Context())
		if err != nil {
			log.WithError(err).Error("failed to issue nonce")
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"mode": opts.Mode})
			return
		}

		c.HTML(http.StatusOK, "donate.html", gin.H{
			"api_endpoint":    opts.APIEndpoint,
			"publishable_key": opts.PublishableKey,
			"referer":         c.GetHeader("Referer"),
			"nonce":           nonce.ID,
			"mode":            opts.Mode,
		})
	})

	r.POST("/", func(c *gin.Context) {
		d := &model.Donation{
			NonceID:   c.PostForm("nonce"),
			RawAmount: c.PostForm("amount"),
			Email:     c.PostForm("email"),
			CardToken: c.PostForm("card_token"),
			ClientIP:  c.PostForm("ip_address"),
			Comment:   c.PostForm("comment"),
		}

		if d.ClientIP == "" {
			d.ClientIP = c.ClientIP()
		}

		result := donations.Submit(c.Request.Context(), d)

		switch result.State {
		case donation.StateCompleted:
			c.HTML(http.StatusOK, "receipt.html", gin.H{
				"token":  result.ChargeToken,
				"amount": result.Amount,
				"mode":   opts.Mode,
			})

		case donation.StateExpired:
			c.HTML(http.StatusOK, "expired.html", gin.H{"mode": opts.Mode})

		case donation.StateRejected:
			c.HTML(http.StatusOK, "rejected.html", gin.H{
				"reason": result.DeclineCode,
				"mode":   opts.Mode,
			})

		default:
			// invalid input and processing errors share the generic page
			c.HTML(http.StatusOK, "error.html", gin.H{"mode": opts.Mode})
		}
	})

	return r
}
