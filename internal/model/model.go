// Package model defines the D-Tools cloud entities consumed by the pipeline.
package model

// Stage and state values as returned by the D-Tools cloud API.
const (
	StageWon        = "Opportunity Won"
	StateAccepted   = "Accepted"
	ServiceCategory = "Service"
)

// PipelineStages is the fixed set of opportunity stages the list endpoint is
// filtered to.
var PipelineStages = []string{
	"New Sales Opportunity",
	"Opportunity Won",
	"Qualifying & Consulting",
	"Quote Development (See Quote States)",
	"Negotiating, Reviews",
	"On Hold",
}

// LaborType is a named category of work with an associated duration.
type LaborType struct {
	Name               string `json:"name"`
	TotalTimeInSeconds int64  `json:"totalTimeInSeconds"`
}

// Minutes returns the labor duration in whole minutes, rounded down.
func (l LaborType) Minutes() int64 {
	return l.TotalTimeInSeconds / 60
}

// ServiceLaborItem is the labor component attached to a catalog service item.
type ServiceLaborItem struct {
	Price float64 `json:"price"`
}

// ServiceItem is a catalog line item. Only items in the Service category
// contribute to the service view.
type ServiceItem struct {
	Category   string             `json:"category"`
	Name       string             `json:"name"`
	Quantity   float64            `json:"quantity"`
	MSRP       float64            `json:"msrp"`
	LaborItems []ServiceLaborItem `json:"laborItems"`
}

// IsService reports whether the item belongs to the Service category.
func (s ServiceItem) IsService() bool {
	return s.Category == ServiceCategory
}

// Price is the extended price of the item: msrp plus the summed labor item
// prices, both multiplied by quantity. Absent msrp or labor items contribute
// zero.
func (s ServiceItem) Price() float64 {
	var labor float64
	for _, li := range s.LaborItems {
		labor += li.Price
	}
	return s.MSRP*s.Quantity + s.Quantity*labor
}

// Opportunity is a potential or won sales record. Won opportunities are
// fetched through the project endpoint but share this shape.
type Opportunity struct {
	ID             string        `json:"id"`
	Stage          string        `json:"stage"`
	ClientName     string        `json:"clientName"`
	Name           string        `json:"name"`
	Price          float64       `json:"price"`
	Priority       string        `json:"priority"`
	QuoteIDs       []string      `json:"quoteIds"`
	ChangeOrderIDs []string      `json:"changeOrderIds"`
	LaborTypes     []LaborType   `json:"laborTypes"`
	Items          []ServiceItem `json:"items"`
}

// Won reports whether the opportunity has been won and is now a project.
func (o Opportunity) Won() bool {
	return o.Stage == StageWon
}

// TimeEntry is a single logged block of worked time against a project.
type TimeEntry struct {
	ProjectID            string `json:"projectId"`
	LaborType            string `json:"laborType"`
	HoursWorkedInMinutes int64  `json:"hoursWorkedInMinutes"`
}

// Quote is a priced proposal linked to a not-yet-won opportunity.
type Quote struct {
	ID         string        `json:"id"`
	State      string        `json:"state"`
	LaborTypes []LaborType   `json:"laborTypes"`
	Items      []ServiceItem `json:"items"`
}

// TotalLaborMinutes sums the quote's labor minutes across all labor types.
func (q Quote) TotalLaborMinutes() int64 {
	var total int64
	for _, lt := range q.LaborTypes {
		total += lt.Minutes()
	}
	return total
}

// TotalServicePrice sums the extended price of the quote's service items.
func (q Quote) TotalServicePrice() float64 {
	var total float64
	for _, it := range q.Items {
		if it.IsService() {
			total += it.Price()
		}
	}
	return total
}

// ChangeOrder is a modification to a won project's scope. Only accepted
// change orders contribute to totals.
type ChangeOrder struct {
	ID         string        `json:"id"`
	State      string        `json:"state"`
	LaborTypes []LaborType   `json:"laborTypes"`
	Items      []ServiceItem `json:"items"`
}

// Accepted reports whether the change order has been accepted.
func (c ChangeOrder) Accepted() bool {
	return c.State == StateAccepted
}

// TimeEntryList is the envelope returned by the time entry list endpoint.
type TimeEntryList struct {
	TimeEntries []TimeEntry `json:"timeEntries"`
}

// OpportunityList is the envelope returned by the opportunity list endpoint.
type OpportunityList struct {
	Opportunities []Opportunity `json:"opportunities"`
}
