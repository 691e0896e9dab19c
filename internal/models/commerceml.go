package models

import "encoding/xml"

// CommerceML 2.x document types. Element names follow the Russian schema
// used by 1C:Enterprise exchange.

const CommerceMLSchemaVersion = "2.04"

// CommerceInfo is the root of both import.xml (catalog) and offers.xml
// (offer package) documents.
type CommerceInfo struct {
	XMLName       xml.Name         `xml:"КоммерческаяИнформация"`
	SchemaVersion string           `xml:"ВерсияСхемы,attr"`
	GeneratedAt   string           `xml:"ДатаФормирования,attr"`
	Catalog       *CMLCatalog      `xml:"Каталог"`
	OfferPackage  *CMLOfferPackage `xml:"ПакетПредложений"`
}

type CMLCatalog struct {
	ID                string       `xml:"Ид"`
	Name              string       `xml:"Наименование"`
	ContainsOnlyDelta string       `xml:"СодержитТолькоИзменения,attr"`
	Products          []CMLProduct `xml:"Товары>Товар"`
}

type CMLProduct struct {
	ID              string              `xml:"Ид"`
	SKU             string              `xml:"Артикул"`
	Name            string              `xml:"Наименование"`
	Description     *string             `xml:"Описание"`
	Images          []string            `xml:"Картинка"`
	Characteristics []CMLCharacteristic `xml:"ХарактеристикиТовара>ХарактеристикаТовара"`
	Requisites      []CMLRequisite      `xml:"ЗначенияРеквизитов>ЗначениеРеквизита"`
}

// CMLCharacteristic is a named attribute such as size or color
type CMLCharacteristic struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

type CMLRequisite struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

type CMLOfferPackage struct {
	ID     string     `xml:"Ид"`
	Name   string     `xml:"Наименование"`
	Offers []CMLOffer `xml:"Предложения>Предложение"`
}

// CMLOffer carries prices for a product. Variant offers use the
// "<product id>#<variant id>" identity form.
type CMLOffer struct {
	ID              string              `xml:"Ид"`
	SKU             string              `xml:"Артикул"`
	Name            string              `xml:"Наименование"`
	Prices          []CMLPrice          `xml:"Цены>Цена"`
	Quantity        string              `xml:"Количество"`
	Characteristics []CMLCharacteristic `xml:"ХарактеристикиТовара>ХарактеристикаТовара"`
}

type CMLPrice struct {
	PriceTypeID string `xml:"ИдТипаЦены"`
	Display     string `xml:"Представление"`
	UnitPrice   string `xml:"ЦенаЗаЕдиницу"`
	Currency    string `xml:"Валюта"`
	Unit        string `xml:"Единица"`
}

// OrdersDocument is the sale/query response body
type OrdersDocument struct {
	XMLName       xml.Name           `xml:"КоммерческаяИнформация"`
	SchemaVersion string             `xml:"ВерсияСхемы,attr"`
	GeneratedAt   string             `xml:"ДатаФормирования,attr"`
	Documents     []CMLOrderDocument `xml:"Документ"`
}

type CMLOrderDocument struct {
	ID             string            `xml:"Ид"`
	Number         string            `xml:"Номер"`
	Date           string            `xml:"Дата"`
	Time           string            `xml:"Время"`
	Operation      string            `xml:"ХозОперация"`
	Role           string            `xml:"Роль"`
	Currency       string            `xml:"Валюта"`
	Rate           string            `xml:"Курс"`
	Sum            string            `xml:"Сумма"`
	Counterparties []CMLCounterparty `xml:"Контрагенты>Контрагент"`
	Comment        string            `xml:"Комментарий,omitempty"`
	Items          []CMLOrderItem    `xml:"Товары>Товар"`
	Requisites     []CMLRequisite    `xml:"ЗначенияРеквизитов>ЗначениеРеквизита"`
}

type CMLCounterparty struct {
	ID       string       `xml:"Ид"`
	Name     string       `xml:"Наименование"`
	Role     string       `xml:"Роль"`
	FullName string       `xml:"ПолноеНаименование"`
	Address  string       `xml:"АдресРегистрации>Представление,omitempty"`
	Contacts []CMLContact `xml:"Контакты>Контакт"`
}

type CMLContact struct {
	Type  string `xml:"Тип"`
	Value string `xml:"Значение"`
}

type CMLOrderItem struct {
	ID        string `xml:"Ид"`
	SKU       string `xml:"Артикул,omitempty"`
	Name      string `xml:"Наименование"`
	UnitPrice string `xml:"ЦенаЗаЕдиницу"`
	Quantity  string `xml:"Количество"`
	Sum       string `xml:"Сумма"`
}
