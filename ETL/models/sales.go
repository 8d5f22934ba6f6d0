package models

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Форматы дат
const (
	// SourceDateLayout - формат BillingDate в исходных книгах Excel
	SourceDateLayout = "20060102"
	// DayLayout - формат дня в агрегированных данных
	DayLayout = "2006-01-02"
)

// decodeLayouts - форматы, которые принимаются при разборе дат из JSON
var decodeLayouts = []string{
	http.TimeFormat,
	"Mon, 02 Jan 2006 15:04:05 MST",
	time.RFC3339,
	DayLayout,
	SourceDateLayout,
}

// ParseDate разбирает дату в одном из поддерживаемых форматов и
// приводит ее к началу дня в UTC
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range decodeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("неверный формат даты: %q", value)
}

// TruncateDay отбрасывает время суток
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BillingTime - дата продажи, сериализуемая в HTTP-формате
// ("Tue, 05 Dec 2023 00:00:00 GMT")
type BillingTime struct {
	time.Time
}

// NewBillingTime создает BillingTime из времени
func NewBillingTime(t time.Time) BillingTime {
	return BillingTime{TruncateDay(t)}
}

func (b BillingTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.UTC().Format(http.TimeFormat))
}

func (b *BillingTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("BillingDate должна быть строкой: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	b.Time = t
	return nil
}

// Day - календарный день, сериализуемый как "2006-01-02"
type Day struct {
	time.Time
}

// NewDay создает Day из времени
func NewDay(t time.Time) Day {
	return Day{TruncateDay(t)}
}

func (d Day) String() string {
	return d.Format(DayLayout)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("дата должна быть строкой: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// SalesRecord представляет строку продаж из книги Excel
type SalesRecord struct {
	Seq                 int         `json:"-"`
	Material            string      `json:"Material"`
	MaterialName        string      `json:"MaterialName"`
	BaseUnit            string      `json:"BaseUnit"`
	BillingDocumentType string      `json:"BillingDocumentType"`
	BillingDate         BillingTime `json:"BillingDate"`
	NetSales            float64     `json:"Net Sales"`
	Plant               string      `json:"Plant"`
	QuantityInBaseUnit  float64     `json:"QuantityInBaseUnit"`
	Region              string      `json:"Region"`
	SoldToParty         int64       `json:"SoldToParty"`
}

// TransformedRecord - строка продаж, разделенная на выложенное и просроченное количество
type TransformedRecord struct {
	SalesRecord
	ShelvedCount float64 `json:"shelved_count"`
	ExpiredCount float64 `json:"expired_count"`
}

// AggregatedRecord - суммы по дню и материалу
type AggregatedRecord struct {
	BillingDate  Day     `json:"BillingDate"`
	MaterialName string  `json:"MaterialName"`
	ShelvedSum   float64 `json:"shelved_sum"`
	ExpiredSum   float64 `json:"expired_sum"`
}

// ProcessedRecord - суммы по дню после сдвига просрочки
type ProcessedRecord struct {
	BillingDate Day     `json:"BillingDate"`
	ShelvedSum  float64 `json:"shelved_sum"`
	ExpiredSum  float64 `json:"expired_sum"`
	NetSum      float64 `json:"net_sum"`
}
