package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/clients"
)

const exchangeCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.04">
  <Каталог>
    <Товары>
      <Товар>
        <Ид>E1</Ид>
        <Артикул>H100</Артикул>
        <Наименование>Худи Test</Наименование>
      </Товар>
    </Товары>
  </Каталог>
</КоммерческаяИнформация>`

const exchangeOffers = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.04">
  <ПакетПредложений>
    <Предложения>
      <Предложение>
        <Ид>E1</Ид>
        <Цены><Цена><ЦенаЗаЕдиницу>3500,00</ЦенаЗаЕдиницу></Цена></Цены>
      </Предложение>
    </Предложения>
  </ПакетПредложений>
</КоммерческаяИнформация>`

func exchangeRequest(method, query string, body []byte, authenticated bool) *http.Request {
	req := httptest.NewRequest(method, "/api/1c-exchange?"+query, bytes.NewReader(body))
	if authenticated {
		req.SetBasicAuth(testExchangeUser, testExchangePassword)
	}
	return req
}

func TestExchange_RejectsUnauthenticatedWithoutWrites(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=import&filename=import.xml", []byte(exchangeCatalog), false))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "failure\nUnauthorized", w.Body.String())
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := exchangeRequest(http.MethodPost, "type=catalog&mode=import", []byte(exchangeCatalog), false)
	req.SetBasicAuth(testExchangeUser, "wrong")
	w = srv.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Zero(t, srv.store.Writes())
}

func TestExchange_Handshake(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=checkauth", nil, true))
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(w.Body.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "success", lines[0])
	assert.Equal(t, ExchangeCookieName, lines[1])
	assert.NotEmpty(t, lines[2])

	w = srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=init", nil, true))
	assert.Equal(t, "zip=no\nfile_limit=104857600", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestExchange_FileThenImportStaged(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	ctx := context.Background()

	w := srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=file&filename=import.xml", []byte(exchangeCatalog), true))
	require.Equal(t, "success", w.Body.String())
	staged, err := srv.staging.Download(ctx, clients.ExchangePrefix+"import.xml")
	require.NoError(t, err)
	assert.Equal(t, exchangeCatalog, string(staged))
	assert.Zero(t, srv.store.Writes())

	w = srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=import&filename=import.xml", nil, true))
	require.Equal(t, "success", w.Body.String())

	w = srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=import&filename=offers.xml", []byte(exchangeOffers), true))
	require.Equal(t, "success", w.Body.String())

	product, err := srv.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Худи Test", product.Name)
	assert.Equal(t, int64(350000), int64(product.Price))
	assert.Equal(t, "clothing", product.Category)
}

func TestExchange_ImportMissingStagedFile(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=import&filename=nothing.xml", nil, true))
	assert.Equal(t, "failure\nfile not found: nothing.xml", w.Body.String())
}

func TestExchange_MalformedDocumentChangesNothing(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=import&filename=import.xml", []byte("<КоммерческаяИнформация><Каталог>"), true))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failure\nError parsing XML", w.Body.String())
	assert.Zero(t, srv.store.Writes())
}

func TestExchange_ImageUploadIsTranscoded(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	w := srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=file&filename=import_files/ab/hoodie.png", buf.Bytes(), true))
	require.Equal(t, "success", w.Body.String())

	exists, err := srv.uploads.Exists(context.Background(), clients.ImagePrefix+"import_files_ab_hoodie.webp")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExchange_FileRequiresPost(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=file&filename=import.xml", nil, true))
	assert.Equal(t, "failure\nfile upload requires POST", w.Body.String())
}

func TestExchange_FileLimit(t *testing.T) {
	srv := newTestServer(t, serverOptions{fileLimit: 16})

	w := srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=init", nil, true))
	assert.Equal(t, "zip=no\nfile_limit=16", w.Body.String())

	w = srv.do(exchangeRequest(http.MethodPost, "type=catalog&mode=file&filename=import.xml", []byte(exchangeCatalog), true))
	assert.Equal(t, "failure\nfile exceeds file_limit=16", w.Body.String())
}

func TestExchange_SaleQueryExportsPendingOrders(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	p := srv.mustCreate(t, testProduct("Кружка", 70000))
	order := srv.placeOrder(t, "s1", p)

	w := srv.do(exchangeRequest(http.MethodGet, "type=sale&mode=query", nil, true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xmlContentType, w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "<?xml"))
	assert.Contains(t, body, "<КоммерческаяИнформация")
	assert.Contains(t, body, "anna@example.com")
	assert.Contains(t, body, "Кружка")
	assert.Contains(t, body, "700.00")
	assert.NotZero(t, order.ID)

	w = srv.do(exchangeRequest(http.MethodGet, "type=sale&mode=success", nil, true))
	assert.Equal(t, "success", w.Body.String())

	stored, err := srv.checkout.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Status, stored.Status)
}

func TestExchange_UnsupportedModes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	tests := []struct {
		name  string
		query string
	}{
		{"unknown mode", "type=catalog&mode=bogus"},
		{"unknown type", "type=inventory&mode=init"},
		{"import for sale", "type=sale&mode=import"},
		{"query for catalog", "type=catalog&mode=query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(exchangeRequest(http.MethodGet, tt.query, nil, true))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "failure\nunsupported mode", w.Body.String())
		})
	}

	w := srv.do(exchangeRequest(http.MethodGet, "type=catalog&mode=complete", nil, true))
	assert.Equal(t, "success", w.Body.String())
}
