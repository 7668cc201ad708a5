// routes.go - HTTP-Schnittstelle der Inferenz-Engine
//
// Enthaelt:
// - Server: Modell, Parallelitaets-Schranke und Ergebnis-Verteiler
// - GenerateRoutes: Gin-Router mit CORS und Endpunkten
// - Handler fuer Modell-Info, Formabfrage und Inferenz
package server

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/shubhanshu02/ffmpeg-1/dnn"
	"github.com/shubhanshu02/ffmpeg-1/envconfig"
	"github.com/shubhanshu02/ffmpeg-1/format"
	"github.com/shubhanshu02/ffmpeg-1/version"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Server bedient ein einzelnes geladenes Modell. Die Semaphore haelt
// die gleichzeitigen Auftraege unter der Pool-Groesse, damit Anfragen
// warten statt am leeren Pool zu scheitern. Ergebnisse verteilt eine
// einzelne Drain-Goroutine anhand der Task-ID.
type Server struct {
	model *dnn.Model
	sem   *semaphore.Weighted

	// submitMu serialisiert Einreichung und Formabfrage, die Engine
	// erwartet einen einzelnen einreichenden Thread
	submitMu sync.Mutex

	mu      sync.Mutex
	waiting map[uuid.UUID]chan *dnn.Result
	orphans map[uuid.UUID]*dnn.Result
	wake    chan struct{}
	quit    chan struct{}
}

// NewServer baut einen Server um ein geladenes Modell und startet
// den Ergebnis-Verteiler
func NewServer(model *dnn.Model) *Server {
	s := &Server{
		model:   model,
		sem:     semaphore.NewWeighted(int64(model.Capacity())),
		waiting: make(map[uuid.UUID]chan *dnn.Result),
		orphans: make(map[uuid.UUID]*dnn.Result),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	go s.drainLoop()
	return s
}

// Close beendet den Ergebnis-Verteiler
func (s *Server) Close() {
	close(s.quit)
}

// drainLoop entnimmt fertige Tasks und stellt sie dem wartenden
// Handler zu. Ergebnisse ohne registrierten Empfaenger werden
// aufbewahrt, der Empfaenger kann die Registrierung verlieren.
func (s *Server) drainLoop() {
	for {
		s.mu.Lock()
		idle := len(s.waiting) == 0
		s.mu.Unlock()
		if idle {
			select {
			case <-s.wake:
			case <-s.quit:
				return
			}
			continue
		}

		res, status := s.model.GetResult()
		switch status {
		case dnn.StatusDone, dnn.StatusFailed:
			s.mu.Lock()
			ch, ok := s.waiting[res.ID]
			if ok {
				delete(s.waiting, res.ID)
			} else {
				s.orphans[res.ID] = res
			}
			s.mu.Unlock()
			if ok {
				ch <- res
			}
		default:
			select {
			case <-time.After(time.Millisecond):
			case <-s.quit:
				return
			}
		}
	}
}

// submit reiht einen asynchronen Auftrag ein und liefert den Kanal,
// auf dem genau ein Ergebnis eintrifft
func (s *Server) submit(params *dnn.ExecParams) (<-chan *dnn.Result, error) {
	params.Async = true

	s.submitMu.Lock()
	id, err := s.model.Execute(params)
	if err != nil && id == uuid.Nil {
		s.submitMu.Unlock()
		return nil, err
	}

	// auch fehlgeschlagene Tasks liefern ihr Ergebnis ueber die Queue
	ch := make(chan *dnn.Result, 1)
	s.mu.Lock()
	if res, ok := s.orphans[id]; ok {
		delete(s.orphans, id)
		ch <- res
	} else {
		s.waiting[id] = ch
	}
	s.mu.Unlock()
	s.submitMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return ch, nil
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept"}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(cors.New(corsConfig))

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "DNN server is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "DNN server is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	r.GET("/api/model", s.ModelHandler)
	r.GET("/api/shape", s.ShapeHandler)
	r.POST("/api/infer", s.InferHandler)

	return r
}

// ModelHandler beschreibt das geladene Modell
func (s *Server) ModelHandler(c *gin.Context) {
	g := s.model.Graph()
	c.JSON(http.StatusOK, gin.H{
		"inputs":   g.InputNames(),
		"outputs":  g.OutputNames(),
		"layers":   len(g.Layers),
		"operands": len(g.Operands),
		"weights":  format.HumanBytes2(g.WeightBytes()),
		"requests": s.model.Capacity(),
	})
}

// ShapeHandler ermittelt die Ausgabegroesse fuer eine Eingabegroesse
func (s *Server) ShapeHandler(c *gin.Context) {
	input := c.DefaultQuery("input", firstName(s.model.Graph().InputNames()))
	output := c.DefaultQuery("output", firstName(s.model.Graph().OutputNames()))
	width, werr := strconv.Atoi(c.Query("width"))
	height, herr := strconv.Atoi(c.Query("height"))
	if werr != nil || herr != nil || width < 1 || height < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height must be positive integers"})
		return
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer s.sem.Release(1)

	s.submitMu.Lock()
	outWidth, outHeight, err := s.model.OutputShape(input, output, width, height)
	s.submitMu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"width": outWidth, "height": outHeight})
}

// InferHandler dekodiert das Bild im Request-Body, laesst das Modell
// laufen und antwortet mit dem Ergebnis als PNG
func (s *Server) InferHandler(c *gin.Context) {
	input := c.DefaultQuery("input", firstName(s.model.Graph().InputNames()))
	output := c.DefaultQuery("output", firstName(s.model.Graph().OutputNames()))
	if input == "" || output == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model has no input or output operand"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("decoding image: %s", err)})
		return
	}

	dims, err := s.model.InputShape(input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inFrame, err := dnn.FrameFromImage(img, int(dims[3]))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer s.sem.Release(1)

	outFrame := &dnn.Frame{}
	ch, err := s.submit(&dnn.ExecParams{
		InputName:   input,
		OutputNames: []string{output},
		Input:       inFrame,
		Output:      outFrame,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var res *dnn.Result
	select {
	case res = <-ch:
	case <-c.Request.Context().Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": c.Request.Context().Err().Error()})
		return
	}
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Err.Error()})
		return
	}

	outImg, err := res.Output.Image()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Writer.Header().Set("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, outImg); err != nil {
		_ = c.Error(err)
	}
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
