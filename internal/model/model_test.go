package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaborType_Minutes_FloorsSeconds(t *testing.T) {
	assert.Equal(t, int64(60), LaborType{TotalTimeInSeconds: 3600}.Minutes())
	assert.Equal(t, int64(59), LaborType{TotalTimeInSeconds: 3599}.Minutes())
	assert.Equal(t, int64(0), LaborType{TotalTimeInSeconds: 59}.Minutes())
}

func TestServiceItem_Price(t *testing.T) {
	item := ServiceItem{
		Category: ServiceCategory,
		Quantity: 3,
		MSRP:     100,
		LaborItems: []ServiceLaborItem{
			{Price: 10},
			{Price: 5},
		},
	}
	// 100*3 + 3*(10+5)
	assert.Equal(t, 345.0, item.Price())
}

func TestServiceItem_Price_MissingPartsContributeZero(t *testing.T) {
	assert.Equal(t, 0.0, ServiceItem{Quantity: 2}.Price())
	assert.Equal(t, 20.0, ServiceItem{Quantity: 2, MSRP: 10}.Price())
	assert.Equal(t, 6.0, ServiceItem{Quantity: 2, LaborItems: []ServiceLaborItem{{Price: 3}}}.Price())
}

func TestServiceItem_IsService(t *testing.T) {
	assert.True(t, ServiceItem{Category: "Service"}.IsService())
	assert.False(t, ServiceItem{Category: "Hardware"}.IsService())
}

func TestQuote_TotalLaborMinutes(t *testing.T) {
	q := Quote{LaborTypes: []LaborType{
		{Name: "Install", TotalTimeInSeconds: 3600},
		{Name: "Design", TotalTimeInSeconds: 1800},
	}}
	assert.Equal(t, int64(90), q.TotalLaborMinutes())
}

func TestQuote_TotalServicePrice_FiltersCategory(t *testing.T) {
	q := Quote{Items: []ServiceItem{
		{Category: "Service", Quantity: 1, MSRP: 100},
		{Category: "Hardware", Quantity: 1, MSRP: 9999},
	}}
	assert.Equal(t, 100.0, q.TotalServicePrice())
}

func TestChangeOrder_Accepted(t *testing.T) {
	assert.True(t, ChangeOrder{State: "Accepted"}.Accepted())
	assert.False(t, ChangeOrder{State: "Pending"}.Accepted())
}

func TestOpportunity_Won(t *testing.T) {
	assert.True(t, Opportunity{Stage: StageWon}.Won())
	assert.False(t, Opportunity{Stage: "On Hold"}.Won())
}
