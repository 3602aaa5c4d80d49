package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodmanager/internal/manager"
	"prodmanager/internal/model"
	"prodmanager/internal/preview"
)

var gifData = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x00\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	cl.t.Helper()
	if cl.cookie != nil {
		req.AddCookie(cl.cookie)
	}
	w := httptest.NewRecorder()
	cl.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == sessionCookie {
			cl.cookie = ck
		}
	}
	return w
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) page() *goquery.Document {
	cl.t.Helper()
	w := cl.get("/")
	require.Equal(cl.t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(cl.t, err)
	return doc
}

func (cl *client) postForm(path string, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return cl.do(req)
}

func (cl *client) postMultipart(path string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	cl.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(cl.t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "foto.gif")
		require.NoError(cl.t, err)
		_, err = fw.Write(image)
		require.NoError(cl.t, err)
	}
	require.NoError(cl.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return cl.do(req)
}

type testServer struct {
	router   http.Handler
	previews *preview.MemoryStore
	sessions *SessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := preview.NewMemoryStore()
	sessions := NewSessionStore(time.Minute, func(id string) *manager.Manager {
		return manager.New(manager.Options{
			Seed:            model.Seed(),
			Previews:        store,
			NotificationTTL: time.Hour,
			Logger:          log.WithField("session", id),
		})
	})
	t.Cleanup(sessions.Close)

	router, err := NewRouter(NewHandler(sessions, store, time.Hour, log), 0)
	require.NoError(t, err)
	return &testServer{router: router, previews: store, sessions: sessions}
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, router: s.router}
}

func TestIndexRendersSeedCatalog(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	doc := cl.page()
	require.NotNil(t, cl.cookie)

	products := doc.Find("#products .product")
	require.Equal(t, 1, products.Length())
	assert.Equal(t, "Smartphone XYZ", products.Find("h3").Text())
	assert.Equal(t, "R$ 999.99", products.Find(".price").Text())
	src, _ := products.Find("img").Attr("src")
	assert.Equal(t, model.PlaceholderImage, src)

	assert.Zero(t, doc.Find("#modal").Length())
	assert.Zero(t, doc.Find("#notification").Length())
	assert.Zero(t, doc.Find("#draft-preview").Length())
	assert.Equal(t, 1, srv.sessions.Len())
}

func TestCreateWithImage(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)
	cl.page()

	w := cl.postMultipart("/products", map[string]string{"name": "Tablet", "price": "499.5"}, gifData)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	doc := cl.page()
	products := doc.Find("#products .product")
	require.Equal(t, 2, products.Length())

	last := products.Last()
	id, _ := last.Attr("data-id")
	assert.Equal(t, "2", id)
	assert.Equal(t, "Tablet", last.Find("h3").Text())
	assert.Equal(t, "R$ 499.50", last.Find(".price").Text())

	src, _ := last.Find("img").Attr("src")
	require.True(t, strings.HasPrefix(src, "/previews/"))
	img := cl.get(src)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/gif", img.Header().Get("Content-Type"))

	n := doc.Find("#notification")
	assert.True(t, n.HasClass("success"))
	assert.Equal(t, manager.MsgCreated, strings.TrimSpace(n.Find("p").Text()))

	// o rascunho volta ao estado inicial
	name, _ := doc.Find("#name").Attr("value")
	assert.Empty(t, name)
}

func TestCreateWithMissingNameKeepsDraft(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	w := cl.postMultipart("/products", map[string]string{"name": "", "price": "10"}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	doc := cl.page()
	assert.Equal(t, 1, doc.Find("#products .product").Length())
	n := doc.Find("#notification")
	assert.True(t, n.HasClass("error"))
	assert.Equal(t, manager.MsgMissingFields, strings.TrimSpace(n.Find("p").Text()))

	price, _ := doc.Find("#price").Attr("value")
	assert.Equal(t, "10", price)
}

func TestEditFlow(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)
	cl.page()

	require.Equal(t, http.StatusSeeOther, cl.postForm("/products/1/edit", nil).Code)
	doc := cl.page()
	modal := doc.Find("#modal")
	require.Equal(t, 1, modal.Length())
	assert.Equal(t, "Editar Produto", modal.Find("h2").Text())
	name, _ := modal.Find("#edit-name").Attr("value")
	assert.Equal(t, "Smartphone XYZ", name)

	// preço vazio: modal continua aberto e a lista não muda
	cl.postMultipart("/edit", map[string]string{"name": "Smartphone ABC", "price": ""}, nil)
	doc = cl.page()
	assert.Equal(t, 1, doc.Find("#modal").Length())
	assert.Equal(t, "Smartphone XYZ", doc.Find("#products .product h3").Text())
	assert.True(t, doc.Find("#notification").HasClass("error"))

	cl.postMultipart("/edit", map[string]string{"name": "Smartphone ABC", "price": "899.9"}, nil)
	doc = cl.page()
	assert.Zero(t, doc.Find("#modal").Length())
	product := doc.Find("#products .product")
	require.Equal(t, 1, product.Length())
	id, _ := product.Attr("data-id")
	assert.Equal(t, "1", id)
	assert.Equal(t, "Smartphone ABC", product.Find("h3").Text())
	assert.Equal(t, "R$ 899.90", product.Find(".price").Text())
	assert.Equal(t, manager.MsgUpdated, strings.TrimSpace(doc.Find("#notification p").Text()))
}

func TestCancelEditDiscardsPreview(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)
	cl.page()

	cl.postForm("/products/1/edit", nil)
	cl.postMultipart("/edit", map[string]string{"name": "", "price": "1"}, gifData)
	assert.Equal(t, 1, srv.previews.Len())

	require.Equal(t, http.StatusSeeOther, cl.postForm("/edit/cancel", nil).Code)
	doc := cl.page()
	assert.Zero(t, doc.Find("#modal").Length())
	assert.Equal(t, "Smartphone XYZ", doc.Find("#products .product h3").Text())
	assert.Equal(t, 0, srv.previews.Len())
}

func TestDeleteProduct(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)
	cl.page()

	require.Equal(t, http.StatusSeeOther, cl.postForm("/products/1/delete", nil).Code)
	doc := cl.page()
	assert.Zero(t, doc.Find("#products .product").Length())
	assert.Equal(t, manager.MsgDeleted, strings.TrimSpace(doc.Find("#notification p").Text()))

	require.Equal(t, http.StatusSeeOther, cl.postForm("/notification/close", nil).Code)
	assert.Zero(t, cl.page().Find("#notification").Length())
}

func TestInvalidProductID(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	assert.Equal(t, http.StatusBadRequest, cl.postForm("/products/abc/delete", nil).Code)
	assert.Equal(t, http.StatusBadRequest, cl.postForm("/products/0/edit", nil).Code)
}

func TestListProductsJSON(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	cl.postMultipart("/products", map[string]string{"name": "Tablet", "price": "499.5"}, nil)
	w := cl.get("/api/products")
	require.Equal(t, http.StatusOK, w.Code)

	var products []model.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Equal(t, []model.Product{
		{ID: 1, Name: "Smartphone XYZ", Price: 999.99, ImageURL: model.PlaceholderImage},
		{ID: 2, Name: "Tablet", Price: 499.5, ImageURL: model.PlaceholderImage},
	}, products)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	a, b := srv.client(t), srv.client(t)

	a.postForm("/products/1/delete", nil)
	assert.Zero(t, a.page().Find("#products .product").Length())
	assert.Equal(t, 1, b.page().Find("#products .product").Length())
	assert.Equal(t, 2, srv.sessions.Len())
}

func TestPlaceholder(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	w := cl.get(model.PlaceholderImage)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `width="200"`)

	assert.Equal(t, http.StatusBadRequest, cl.get("/api/placeholder/0/200").Code)
	assert.Equal(t, http.StatusBadRequest, cl.get("/api/placeholder/x/200").Code)
}

func TestUnknownPreview(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)
	assert.Equal(t, http.StatusNotFound, cl.get("/previews/00000000-0000-0000-0000-000000000000").Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := srv.client(t).get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHugePriceIsRejectedAndPageStaysWhole(t *testing.T) {
	srv := newTestServer(t)
	cl := srv.client(t)

	cl.postMultipart("/products", map[string]string{"name": "X", "price": "1e400"}, nil)

	doc := cl.page()
	assert.Equal(t, 1, doc.Find("#products .product").Length())
	assert.True(t, doc.Find("#notification").HasClass("error"))
	assert.Equal(t, 1, doc.Find("#products .product .delete").Length())

	w := cl.get("/api/products")
	require.Equal(t, http.StatusOK, w.Code)
	var products []model.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 1)
}

func TestPreviewNotServedToOtherSessions(t *testing.T) {
	srv := newTestServer(t)
	owner, stranger := srv.client(t), srv.client(t)
	stranger.page()

	owner.postMultipart("/products", map[string]string{"name": "Tablet", "price": "10"}, gifData)
	src, _ := owner.page().Find("#products .product").Last().Find("img").Attr("src")
	require.True(t, strings.HasPrefix(src, "/previews/"))

	assert.Equal(t, http.StatusOK, owner.get(src).Code)
	assert.Equal(t, http.StatusNotFound, stranger.get(src).Code)
}
