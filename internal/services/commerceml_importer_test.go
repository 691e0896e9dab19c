package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"storefront-sync-service/internal/models"
)

const catalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.04">
  <Каталог>
    <Ид>cat-1</Ид>
    <Товары>
      <Товар>
        <Ид>E1</Ид>
        <Артикул>H100</Артикул>
        <Наименование>Худи Test</Наименование>
        <Картинка>import_files/ab/hoodie.jpg</Картинка>
        <ХарактеристикиТовара>
          <ХарактеристикаТовара><Наименование>Размер</Наименование><Значение>M</Значение></ХарактеристикаТовара>
          <ХарактеристикаТовара><Наименование>Цвет</Наименование><Значение>Черный</Значение></ХарактеристикаТовара>
        </ХарактеристикиТовара>
      </Товар>
      <Товар>
        <Ид></Ид>
        <Наименование>No identity</Наименование>
      </Товар>
    </Товары>
  </Каталог>
</КоммерческаяИнформация>`

const offersXML = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.04">
  <ПакетПредложений>
    <Предложения>
      <Предложение>
        <Ид>E1</Ид>
        <Цены><Цена><ЦенаЗаЕдиницу>3500,00</ЦенаЗаЕдиницу></Цена></Цены>
      </Предложение>
      <Предложение>
        <Ид>UNKNOWN</Ид>
        <Цены><Цена><ЦенаЗаЕдиницу>100</ЦенаЗаЕдиницу></Цена></Цены>
      </Предложение>
    </Предложения>
  </ПакетПредложений>
</КоммерческаяИнформация>`

func TestImport_CatalogThenOffers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	stats, err := env.importer.Import(ctx, []byte(catalogXML))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.SkippedEntries)

	p, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Худи Test", p.Name)
	assert.Equal(t, "H100", models.Deref(p.SKU))
	assert.Equal(t, "clothing", p.Category)
	assert.Equal(t, "Толстовки", models.Deref(p.Subcategory))
	assert.Equal(t, models.MinorUnits(0), p.Price)
	assert.True(t, p.IsNew)
	assert.Equal(t, "/uploads/products/import_files_ab_hoodie.webp", p.ImageURL)
	assert.Equal(t, models.StringList{"M"}, p.Sizes)
	assert.Equal(t, models.StringList{"Черный"}, p.Colors)

	stats, err = env.importer.Import(ctx, []byte(offersXML))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PricesUpdated)
	assert.Equal(t, 1, stats.SkippedOffers)

	p, err = env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, models.MinorUnits(350000), p.Price)
	assert.False(t, p.OnSale)
}

func TestImport_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.importer.Import(ctx, []byte(catalogXML))
	require.NoError(t, err)
	first, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)

	stats, err := env.importer.Import(ctx, []byte(catalogXML))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Updated)

	all, err := env.catalog.GetProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, first.Sizes, all[0].Sizes)
}

func TestImport_FallsBackToSKU(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	existing := env.mustCreate(t, &models.Product{
		Name:        "Old name",
		Description: "kept",
		SKU:         models.Ptr("H100"),
		ExternalID:  models.Ptr("LEGACY"),
		Category:    "clothing",
	})

	stats, err := env.importer.Import(ctx, []byte(catalogXML))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Updated)

	p, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, p.ID)
	assert.Equal(t, "Худи Test", p.Name)
	assert.Equal(t, "kept", p.Description, "absent description leaves the field untouched")
}

func TestImport_ExternalIDWinsOverSKU(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	byExt := env.mustCreate(t, &models.Product{Name: "a", ExternalID: models.Ptr("E1")})
	bySKU := env.mustCreate(t, &models.Product{Name: "b", SKU: models.Ptr("OTHER")})

	doc := `<КоммерческаяИнформация><Каталог><Товары><Товар>
	<Ид>E1</Ид><Артикул>OTHER2</Артикул><Наименование>Футболка</Наименование>
	</Товар></Товары></Каталог></КоммерческаяИнформация>`
	_, err := env.importer.Import(ctx, []byte(doc))
	require.NoError(t, err)

	p, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, byExt.ID, p.ID)
	assert.Equal(t, "OTHER2", models.Deref(p.SKU))

	untouched, err := env.store.GetProductByID(ctx, bySKU.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", untouched.Name)
}

func TestImport_MalformedDocumentWritesNothing(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.importer.Import(context.Background(), []byte(`<КоммерческаяИнформация><Каталог><Товары>`))
	assert.ErrorIs(t, err, ErrMalformedFeed)
	assert.Zero(t, env.store.Writes())
}

func TestImport_OfferPricesAndSale(t *testing.T) {
	tests := []struct {
		name       string
		prices     string
		wantPrice  models.MinorUnits
		wantOnSale bool
	}{
		{"single price", `<Цена><ЦенаЗаЕдиницу>4500</ЦенаЗаЕдиницу></Цена>`, 450000, false},
		{"deep discount", `<Цена><ЦенаЗаЕдиницу>3900</ЦенаЗаЕдиницу></Цена><Цена><ЦенаЗаЕдиницу>5000</ЦенаЗаЕдиницу></Цена>`, 390000, true},
		{"shallow discount", `<Цена><ЦенаЗаЕдиницу>5000</ЦенаЗаЕдиницу></Цена><Цена><ЦенаЗаЕдиницу>4500</ЦенаЗаЕдиницу></Цена>`, 450000, false},
		{"rounding", `<Цена><ЦенаЗаЕдиницу>1 299,995</ЦенаЗаЕдиницу></Цена>`, 130000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, nil)
			env.mustCreate(t, &models.Product{Name: "Футболка", ExternalID: models.Ptr("E1"), OnSale: true})

			doc := `<КоммерческаяИнформация><ПакетПредложений><Предложения><Предложение>
			<Ид>E1#v1</Ид><Цены>` + tt.prices + `</Цены></Предложение></Предложения></ПакетПредложений></КоммерческаяИнформация>`
			stats, err := env.importer.Import(ctx, []byte(doc))
			require.NoError(t, err)
			assert.Equal(t, 1, stats.PricesUpdated)

			p, err := env.catalog.GetProductByExternalID(ctx, "E1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, p.Price)
			assert.Equal(t, tt.wantOnSale, p.OnSale)
		})
	}
}

func TestImport_OfferVariantMergesSizes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.mustCreate(t, &models.Product{Name: "Носки", ExternalID: models.Ptr("E7"), Sizes: models.StringList{"34-39"}})

	doc := `<КоммерческаяИнформация><ПакетПредложений><Предложения><Предложение>
	<Ид>E7#40</Ид><Цены><Цена><ЦенаЗаЕдиницу>300</ЦенаЗаЕдиницу></Цена></Цены>
	<ХарактеристикиТовара><ХарактеристикаТовара><Наименование>Размер</Наименование><Значение>40-45</Значение></ХарактеристикаТовара></ХарактеристикиТовара>
	</Предложение></Предложения></ПакетПредложений></КоммерческаяИнформация>`
	_, err := env.importer.Import(ctx, []byte(doc))
	require.NoError(t, err)

	p, err := env.catalog.GetProductByExternalID(ctx, "E7")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"34-39", "40-45"}, p.Sizes)
}

func TestImport_OfferWithoutPriceIsSkipped(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, &models.Product{Name: "Кепка", ExternalID: models.Ptr("E2"), Price: 100})
	writes := env.store.Writes()

	doc := `<КоммерческаяИнформация><ПакетПредложений><Предложения><Предложение>
	<Ид>E2</Ид><Цены><Цена><ЦенаЗаЕдиницу>n/a</ЦенаЗаЕдиницу></Цена></Цены>
	</Предложение></Предложения></ПакетПредложений></КоммерческаяИнформация>`
	stats, err := env.importer.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedOffers)
	assert.Equal(t, writes, env.store.Writes())
}

func TestImport_NotifiesAndClearsCache(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("PublishCatalogSynced", mock.Anything, OriginReconcile, "import.xml", mock.AnythingOfType("*models.ImportStats")).
		Return(errors.New("nats down"))
	env := newTestEnv(t, notifier)

	before, err := env.catalog.GetProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = env.importer.ImportNamed(ctx, []byte(catalogXML), OriginReconcile, "import.xml")
	require.NoError(t, err, "notification failures do not fail the import")

	after, err := env.catalog.GetProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, after, 1)
	notifier.AssertExpectations(t)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"3500,00", 350000, false},
		{"3500.5", 350050, false},
		{"0,005", 1, false},
		{" 12 000 ", 1200000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPrice, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDocument_Windows1251(t *testing.T) {
	utf8Doc := `<?xml version="1.0" encoding="windows-1251"?>
<КоммерческаяИнформация ВерсияСхемы="2.04"><Каталог><Товары><Товар>
<Ид>E1</Ид><Наименование>Носки спортивные</Наименование>
</Товар></Товары></Каталог></КоммерческаяИнформация>`
	encoded, err := charmap.Windows1251.NewEncoder().String(utf8Doc)
	require.NoError(t, err)

	doc, err := ParseDocument([]byte(encoded))
	require.NoError(t, err)
	require.NotNil(t, doc.Catalog)
	require.Len(t, doc.Catalog.Products, 1)
	assert.Equal(t, "Носки спортивные", doc.Catalog.Products[0].Name)
	assert.Equal(t, "2.04", doc.SchemaVersion)
}
