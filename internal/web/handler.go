package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"prodmanager/internal/manager"
	"prodmanager/internal/model"
	"prodmanager/internal/preview"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	managerKey         = "manager"
	editTitle          = "Editar Produto"
	maxPlaceholderSide = 2000
)

// Modal é só o contêiner do formulário de edição; o estado vem do gerenciador.
type Modal struct {
	Open  bool
	Title string
	Edit  *model.EditBuffer
}

type page struct {
	State                 manager.State
	Modal                 Modal
	NotificationTTLMillis int64
}

type productForm struct {
	Name  string `form:"name"`
	Price string `form:"price"`
}

type Handler struct {
	sessions        *SessionStore
	previews        preview.Store
	notificationTTL time.Duration
	log             *logrus.Logger
}

func NewHandler(sessions *SessionStore, previews preview.Store, notificationTTL time.Duration, log *logrus.Logger) *Handler {
	return &Handler{
		sessions:        sessions,
		previews:        previews,
		notificationTTL: notificationTTL,
		log:             log,
	}
}

func NewRouter(h *Handler, maxMultipartMemory int64) (*gin.Engine, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())
	router.SetHTMLTemplate(tmpl)
	if maxMultipartMemory > 0 {
		router.MaxMultipartMemory = maxMultipartMemory
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/placeholder/:w/:h", placeholder)

	ui := router.Group("/", h.withSession())
	ui.GET("/", h.index)
	ui.GET("/api/products", h.listProducts)
	ui.GET("/previews/:handle", h.servePreview)
	ui.POST("/products", h.create)
	ui.POST("/products/:id/edit", h.startEdit)
	ui.POST("/products/:id/delete", h.delete)
	ui.POST("/edit", h.submitEdit)
	ui.POST("/edit/cancel", h.cancelEdit)
	ui.POST("/notification/close", h.closeNotification)

	return router, nil
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("Requisição concluída")
	}
}

func (h *Handler) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(sessionCookie); err == nil {
			if m, ok := h.sessions.Get(id); ok {
				c.Set(managerKey, m)
				c.Next()
				return
			}
		}
		id, m := h.sessions.Create()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		h.log.WithField("session", id).Info("Nova sessão criada")
		c.Set(managerKey, m)
		c.Next()
	}
}

func mgr(c *gin.Context) *manager.Manager {
	return c.MustGet(managerKey).(*manager.Manager)
}

func (h *Handler) index(c *gin.Context) {
	s := mgr(c).Snapshot()
	c.HTML(http.StatusOK, "index.html", page{
		State: s,
		Modal: Modal{
			Open:  s.ModalOpen(),
			Title: editTitle,
			Edit:  s.Edit,
		},
		NotificationTTLMillis: h.notificationTTL.Milliseconds(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, mgr(c).Products())
}

func (h *Handler) create(c *gin.Context) {
	m := mgr(c)
	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "formulário inválido")
		return
	}
	m.SetDraft(form.Name, form.Price)
	if u, ok := h.upload(c); ok {
		if err := m.SelectDraftImage(u); err != nil {
			h.log.WithError(err).Warn("Falha ao carregar imagem")
		}
	}
	if _, err := m.SubmitCreate(); err != nil {
		h.logRejected(err)
	}
	back(c)
}

func (h *Handler) startEdit(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	if _, err := mgr(c).StartEdit(id); err != nil {
		h.log.WithError(err).Warn("Edição não iniciada")
	}
	back(c)
}

func (h *Handler) submitEdit(c *gin.Context) {
	m := mgr(c)
	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "formulário inválido")
		return
	}
	if err := m.SetEdit(form.Name, form.Price); err != nil {
		h.log.WithError(err).Warn("Envio de edição sem modal aberto")
		back(c)
		return
	}
	if u, ok := h.upload(c); ok {
		if err := m.SelectEditImage(u); err != nil {
			h.log.WithError(err).Warn("Falha ao carregar imagem")
		}
	}
	if _, err := m.SubmitEdit(); err != nil {
		h.logRejected(err)
	}
	back(c)
}

func (h *Handler) cancelEdit(c *gin.Context) {
	mgr(c).CloseModal()
	back(c)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	if err := mgr(c).Delete(id); err != nil {
		h.log.WithError(err).Warn("Exclusão falhou")
	}
	back(c)
}

func (h *Handler) closeNotification(c *gin.Context) {
	mgr(c).DismissNotification()
	back(c)
}

func (h *Handler) servePreview(c *gin.Context) {
	handle := preview.Handle(c.Param("handle"))
	if !mgr(c).OwnsPreview(handle) {
		c.Status(http.StatusNotFound)
		return
	}
	p, ok := h.previews.Open(handle)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, p.ContentType, p.Data)
}

// upload lê o arquivo "image" do formulário, se houver.
func (h *Handler) upload(c *gin.Context) (preview.Upload, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			h.log.WithError(err).Warn("Falha ao ler o arquivo enviado")
		}
		return preview.Upload{}, false
	}
	if fh.Size == 0 {
		return preview.Upload{}, false
	}
	data, err := readFile(fh)
	if err != nil {
		h.log.WithError(err).Warn("Falha ao ler o arquivo enviado")
		return preview.Upload{}, false
	}
	return preview.Upload{Filename: fh.Filename, Data: data}, true
}

func (h *Handler) logRejected(err error) {
	var verr *manager.ValidationError
	if errors.As(err, &verr) {
		h.log.WithFields(logrus.Fields{
			"form":    verr.Form,
			"missing": verr.Missing,
		}).Info("Formulário incompleto")
		return
	}
	h.log.WithError(err).Warn("Envio rejeitado")
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func productID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.String(http.StatusBadRequest, "id de produto inválido")
		return 0, false
	}
	return id, true
}

func back(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func placeholder(c *gin.Context) {
	w, errW := strconv.Atoi(c.Param("w"))
	hgt, errH := strconv.Atoi(c.Param("h"))
	if errW != nil || errH != nil || w <= 0 || hgt <= 0 || w > maxPlaceholderSide || hgt > maxPlaceholderSide {
		c.Status(http.StatusBadRequest)
		return
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="100%%" height="100%%" fill="#e5e7eb"/>`+
		`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" fill="#6b7280" font-family="sans-serif">%d×%d</text>`+
		`</svg>`, w, hgt, w, hgt, w, hgt)
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
}
