// Package split turns Planner fragments ("10", "10.001", "10.002") back into order
// lines.
package split

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordersaga/src/connectors"
	"ordersaga/src/failure"
	"ordersaga/src/model"
)

// ItemNoStep is the gap between item numbers allocated for new lines.
const ItemNoStep = 10

// Group buckets response lines by their base item number. Within a bucket the bare
// line number comes first, then fragments by suffix.
func Group(lines []connectors.PlannerResponseLine) map[string][]connectors.PlannerResponseLine {
	groups := map[string][]connectors.PlannerResponseLine{}
	for _, l := range lines {
		base := l.BaseLineNumber()
		groups[base] = append(groups[base], l)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return fragmentIndex(g[i].LineNumber) < fragmentIndex(g[j].LineNumber)
		})
	}
	return groups
}

// fragmentIndex is 0 for "N" and k for "N.00k".
func fragmentIndex(lineNumber string) int {
	i := strings.IndexByte(lineNumber, '.')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(lineNumber[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// Allocation binds one Planner fragment to the line that will carry it.
type Allocation struct {
	SourceItemNo string
	Response     connectors.PlannerResponseLine
	Line         *model.OrderLine
	New          bool
}

// Plan is the outcome of materializing one Planner response. It is built in memory
// so the Ledger payload can name the new items before anything is written.
type Plan struct {
	Allocations []Allocation
	// Split holds the source items that fanned out into more than one line.
	Split map[string]bool
}

// Created returns the lines the plan adds to the order.
func (p *Plan) Created() []*model.OrderLine {
	var out []*model.OrderLine
	for _, a := range p.Allocations {
		if a.New {
			out = append(out, a.Line)
		}
	}
	return out
}

// For returns the allocations of one source item, first fragment first.
func (p *Plan) For(itemNo string) []Allocation {
	var out []Allocation
	for _, a := range p.Allocations {
		if a.SourceItemNo == itemNo {
			out = append(out, a)
		}
	}
	return out
}

// MarkOrigins points every existing line that was split at its own item number, so
// all lines out of one split share the same origin. An origin from an earlier split
// is replaced.
func (p *Plan) MarkOrigins() {
	for _, a := range p.Allocations {
		if !a.New && p.Split[a.SourceItemNo] {
			a.Line.OriginalItemNo = a.SourceItemNo
		}
	}
}

type Materializer struct {
	log *logger.Entry
}

func NewMaterializer(log *logger.Entry) *Materializer {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Materializer{log: log}
}

// Plan maps the successful response lines of the submitted items onto the order.
// The first fragment updates the existing line; every other fragment becomes a new
// line numbered max+10, max+20, ... across the whole pass. The order is not mutated.
func (m *Materializer) Plan(order *model.Order, submitted []string, responses []connectors.PlannerResponseLine) (*Plan, error) {
	groups := Group(responses)
	plan := &Plan{Split: map[string]bool{}}
	next := order.MaxItemNumber()

	for _, itemNo := range submitted {
		frags := groups[itemNo]
		if len(frags) == 0 {
			continue
		}
		src := order.LineByItemNo(itemNo)
		if src == nil {
			return nil, failure.NewIntegrity("split.plan", fmt.Errorf("planner answered for unknown item %s", itemNo))
		}

		plan.Allocations = append(plan.Allocations, Allocation{SourceItemNo: itemNo, Response: frags[0], Line: src})
		if len(frags) == 1 {
			continue
		}

		plan.Split[itemNo] = true
		for _, frag := range frags[1:] {
			next += ItemNoStep
			line := CloneStatic(src)
			line.ItemNo = strconv.Itoa(next)
			line.OriginalItemNo = itemNo
			line.Quantity = frag.Quantity
			line.Plant = frag.WarehouseCode
			line.ConfirmedDate = frag.Dispatch()
			line.IPlan = &model.LineIPlan{
				InquiryMethod: src.InquiryMethod,
				LocationCode:  order.ShipToCode,
				RequestUnit:   src.Unit,
				RequestType:   model.RequestTypeNew,
			}
			MirrorIPlan(line.IPlan, frag)
			plan.Allocations = append(plan.Allocations, Allocation{SourceItemNo: itemNo, Response: frag, Line: line, New: true})
		}

		m.log.WithFields(map[string]interface{}{
			"order_id":  order.ID,
			"item_no":   itemNo,
			"fragments": len(frags),
		}).Info("planner split line")
	}
	return plan, nil
}

// CloneStatic copies the attributes a new line inherits from the line it came out of.
func CloneStatic(src *model.OrderLine) *model.OrderLine {
	return &model.OrderLine{
		OrderID:            src.OrderID,
		MaterialCode:       src.MaterialCode,
		ProductGroup:       src.ProductGroup,
		ItemCategory:       src.ItemCategory,
		ContractMaterialID: src.ContractMaterialID,
		Unit:               src.Unit,
		RequestDate:        src.RequestDate,
		InquiryMethod:      src.InquiryMethod,
		LineStatus:         model.LineStatusEnable,
		Draft:              src.Draft,
		Remark:             src.Remark,
	}
}

// MirrorIPlan copies the Planner's answer for a fragment onto an IPlan row.
func MirrorIPlan(ip *model.LineIPlan, frag connectors.PlannerResponseLine) {
	op := frag.FirstOperation()
	ip.AtpCtp = model.AtpCtpATP
	if strings.EqualFold(frag.OrderType, model.AtpCtpCTP) {
		ip.AtpCtp = model.AtpCtpCTP
	}
	ip.AtpCtpDetail = frag.AtpCtpDetail
	ip.BlockCode = op.BlockCode
	ip.RunCode = op.RunCode
	ip.WorkCentreCode = op.WorkCentreCode
	ip.OnHandStock = frag.OnHandStock
	ip.ConfirmedQuantity = frag.Quantity
	ip.ConfirmedDate = frag.Dispatch()
	ip.PlannerLineNumber = frag.LineNumber
	ip.ReturnStatus = frag.ReturnStatus
	ip.ReturnCode = frag.ReturnCode
}

// Persist writes the new lines of the plan and then their IPlan rows, one batch each,
// inside the caller's transaction. A short write is an integrity failure so that the
// caller's transaction rolls back as a whole.
func (m *Materializer) Persist(tx *gorm.DB, plan *Plan) error {
	lines := plan.Created()
	if len(lines) == 0 {
		return nil
	}

	res := tx.Omit(clause.Associations).Create(&lines)
	if res.Error != nil {
		return failure.NewIntegrity("split.persist", fmt.Errorf("create lines: %w", res.Error))
	}
	if res.RowsAffected != int64(len(lines)) {
		return failure.NewIntegrity("split.persist", fmt.Errorf("created %d of %d lines", res.RowsAffected, len(lines)))
	}

	iplans := make([]*model.LineIPlan, 0, len(lines))
	for _, l := range lines {
		if l.IPlan == nil {
			l.IPlan = &model.LineIPlan{}
		}
		l.IPlan.OrderLineID = l.ID
		iplans = append(iplans, l.IPlan)
	}
	res = tx.Create(&iplans)
	if res.Error != nil {
		return failure.NewIntegrity("split.persist", fmt.Errorf("create iplan rows: %w", res.Error))
	}
	if res.RowsAffected != int64(len(iplans)) {
		return failure.NewIntegrity("split.persist", fmt.Errorf("created %d of %d iplan rows", res.RowsAffected, len(iplans)))
	}
	return nil
}
