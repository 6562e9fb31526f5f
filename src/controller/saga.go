package controller

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"ordersaga/src/attention"
	"ordersaga/src/connectors"
	"ordersaga/src/failure"
	"ordersaga/src/mapper"
	"ordersaga/src/model"
	"ordersaga/src/repository"
	"ordersaga/src/split"
	"ordersaga/src/status"
)

// SagaState is one step of a change operation.
type SagaState string

const (
	StatePending          SagaState = "Pending"
	StatePlannerRequested SagaState = "PlannerRequested"
	StatePlannerConfirmed SagaState = "PlannerConfirmed"
	StatePlannerFailed    SagaState = "PlannerFailed"
	StateLedgerApplied    SagaState = "LedgerApplied"
	StateLedgerFailed     SagaState = "LedgerFailed"
	StateCommitted        SagaState = "Committed"
	StateRolledBack       SagaState = "RolledBack"
	StateNeedsRetry       SagaState = "NeedsRetry"
)

// Lines outside the Planner's product groups go from Pending straight to the Ledger.
var sagaTransitions = map[SagaState][]SagaState{
	StatePending:          {StatePlannerRequested, StateLedgerApplied, StateLedgerFailed},
	StatePlannerRequested: {StatePlannerConfirmed, StatePlannerFailed},
	StatePlannerConfirmed: {StateLedgerApplied, StateLedgerFailed},
	StateLedgerApplied:    {StateCommitted, StateNeedsRetry},
	StateLedgerFailed:     {StateRolledBack},
}

// Terminal reports whether no further transition exists.
func (s SagaState) Terminal() bool {
	return len(sagaTransitions[s]) == 0
}

const (
	stagePlanner = "planner"
	stageLedger  = "ledger"
	stageConfirm = "confirm"
	stagePersist = "persist"
)

// LineOutcome is what happened to one line in a saga run.
type LineOutcome struct {
	ItemNo         string `json:"itemNo"`
	OriginalItemNo string `json:"originalItemNo,omitempty"`
	RequestType    string `json:"requestType,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Code           string `json:"code,omitempty"`
	FirstCode      string `json:"firstCode,omitempty"`
	SecondCode     string `json:"secondCode,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ChangeResult is returned by every orchestrator operation that reached the saga.
// Succeeded and Failed together cover every line the operation touched.
type ChangeResult struct {
	OrderID     uint          `json:"orderId"`
	OrderNo     string        `json:"orderNo"`
	Feature     string        `json:"feature"`
	State       SagaState     `json:"state"`
	Transitions []SagaState   `json:"transitions"`
	OrderStatus string        `json:"orderStatus"`
	Succeeded   []LineOutcome `json:"succeeded"`
	Failed      []LineOutcome `json:"failed"`
	Warnings    []LineOutcome `json:"warnings,omitempty"`
}

func newResult(order *model.Order, feature string) *ChangeResult {
	return &ChangeResult{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		Feature:     feature,
		State:       StatePending,
		Transitions: []SagaState{StatePending},
		OrderStatus: order.Status,
		Succeeded:   []LineOutcome{},
		Failed:      []LineOutcome{},
	}
}

// to panics on a transition the state machine does not have; that is a bug in the
// orchestrator, not a runtime condition.
func (r *ChangeResult) to(next SagaState) {
	for _, allowed := range sagaTransitions[r.State] {
		if allowed == next {
			r.State = next
			r.Transitions = append(r.Transitions, next)
			return
		}
	}
	panic(fmt.Sprintf("saga: illegal transition %s -> %s", r.State, next))
}

// touch is one line taking part in a saga run. line points at the working copy in
// order.Lines; before holds the line as the Ledger last accepted it.
type touch struct {
	line        *model.OrderLine
	before      model.OrderLine
	requestType string
	created     bool // draft line unknown to the Ledger
	undo        bool // cancelled line being restored
}

func (t *touch) itemNo() string {
	return t.line.ItemNo
}

func itemNos(ts []*touch) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.itemNo())
	}
	return out
}

// saga is the state of one run.
type saga struct {
	o          *Orchestrator
	order      *model.Order
	feature    string
	headerCode string
	statusWas  string
	log        *logger.Entry
	result     *ChangeResult

	viaPlanner []*touch
	direct     []*touch
	planned    []*touch // accepted by the Planner
	plan       *split.Plan
	ledger     *connectors.LedgerResult
}

func (s *saga) call(items []string, retry bool) connectors.Call {
	id := s.order.ID
	return connectors.Call{
		OrderID:        &id,
		OrderNo:        s.order.OrderNo,
		Feature:        s.feature,
		ItemNos:        items,
		RetryOnFailure: retry,
		Sink:           s.o.calls,
		Log:            s.log,
	}
}

// run drives one change operation through the saga. External failures end in a
// result state, not an error; the error return is reserved for local failures.
func (o *Orchestrator) run(ctx context.Context, order *model.Order, feature string, touches []*touch) (*ChangeResult, error) {
	s := &saga{
		o:          o,
		order:      order,
		feature:    feature,
		headerCode: order.HeaderCode(),
		statusWas:  order.Status,
		result:     newResult(order, feature),
		log: o.log.WithFields(map[string]interface{}{
			"order_id": order.ID,
			"order_no": order.OrderNo,
			"feature":  feature,
		}),
	}

	for _, t := range touches {
		if mapper.RequiresPlanner(t.line, o.cfg.PlannerProductGroups) {
			s.viaPlanner = append(s.viaPlanner, t)
		} else {
			s.direct = append(s.direct, t)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"planner_lines": len(s.viaPlanner),
		"direct_lines":  len(s.direct),
	}).Info("saga started")

	ok, err := s.requestPlanner(ctx)
	if err != nil || !ok {
		return s.finish(), err
	}

	applied := s.applyLedger(ctx)

	// From here the Ledger has answered. Local bookkeeping runs to completion even
	// when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	if !applied {
		s.rollback(ctx)
		return s.finish(), nil
	}

	err = s.commit(ctx)
	return s.finish(), err
}

func (s *saga) finish() *ChangeResult {
	s.result.OrderNo = s.order.OrderNo
	s.result.OrderStatus = s.order.Status
	s.log.WithFields(map[string]interface{}{
		"state":     s.result.State,
		"succeeded": len(s.result.Succeeded),
		"failed":    len(s.result.Failed),
	}).Info("saga finished")
	return s.result
}

// requestPlanner sends one batched request for every line the Planner plans. It
// reports false when the run must stop there.
func (s *saga) requestPlanner(ctx context.Context) (bool, error) {
	if len(s.viaPlanner) == 0 {
		s.plan = &split.Plan{Split: map[string]bool{}}
		return true, nil
	}

	s.result.to(StatePlannerRequested)

	reqs := make([]mapper.LineRequest, 0, len(s.viaPlanner))
	for _, t := range s.viaPlanner {
		reqs = append(reqs, mapper.LineRequest{Line: t.line, RequestType: t.requestType})
	}
	pr, err := s.o.planner.Request(ctx, s.call(itemNos(s.viaPlanner), false), mapper.BuildPlannerRequest(s.order, reqs))
	if err != nil {
		s.log.WithError(err).Warn("planner request failed")
		for _, t := range append(append([]*touch{}, s.viaPlanner...), s.direct...) {
			s.fail(t.line, t.requestType, stagePlanner, failureOf(t.itemNo(), err))
		}
		s.result.to(StatePlannerFailed)
		return false, nil
	}

	accepted := pr.Succeeded()
	groups := split.Group(accepted)
	failures := map[string]connectors.LineFailure{}
	for _, f := range pr.Failures {
		failures[f.ItemNo] = f
	}

	for _, t := range s.viaPlanner {
		if f, rejected := failures[t.itemNo()]; rejected {
			s.fail(t.line, t.requestType, stagePlanner, f)
			continue
		}
		if len(groups[t.itemNo()]) == 0 {
			s.fail(t.line, t.requestType, stagePlanner, connectors.LineFailure{ItemNo: t.itemNo(), Message: "missing from planner response"})
			continue
		}
		s.planned = append(s.planned, t)
	}

	if len(s.planned) == 0 {
		for _, t := range s.direct {
			s.fail(t.line, t.requestType, stagePlanner, connectors.LineFailure{ItemNo: t.itemNo(), Message: "not sent: every planner line failed"})
		}
		s.result.to(StatePlannerFailed)
		return false, nil
	}

	plan, err := s.o.materializer.Plan(s.order, itemNos(s.planned), accepted)
	if err != nil {
		s.result.to(StatePlannerFailed)
		s.releasePlanner(context.WithoutCancel(ctx))
		for _, t := range s.planned {
			s.fail(t.line, t.requestType, stagePlanner, failureOf(t.itemNo(), err))
		}
		Capture(ctx, s.o.exceptions, "order_saga", "controller", "materializer.Plan", "error", err,
			map[string]interface{}{"order_id": s.order.ID, "feature": s.feature})
		return false, err
	}
	s.plan = plan

	s.result.to(StatePlannerConfirmed)
	return true, nil
}

// applyLedger sends the Ledger document. Planner lines carry the Planner's answer,
// direct lines the values the user gave.
func (s *saga) applyLedger(ctx context.Context) bool {
	var (
		changes []mapper.ItemChange
		items   []string
	)
	for _, t := range s.planned {
		allocs := s.plan.For(t.itemNo())
		changes = append(changes, s.ledgerChange(t, &allocs[0].Response))
		items = append(items, t.itemNo())
		for _, a := range allocs[1:] {
			changes = append(changes, mapper.NewItem(a.Line, a.Response.Quantity, a.Response.WarehouseCode, a.Response.Dispatch(), confirmQty(a.Response)))
			items = append(items, a.Line.ItemNo)
		}
	}
	for _, t := range s.direct {
		changes = append(changes, s.ledgerChange(t, nil))
		items = append(items, t.itemNo())
	}

	req := mapper.BuildLedgerRequest(s.order, changes)
	call := s.call(items, false)

	var (
		lr  *connectors.LedgerResult
		err error
	)
	creating := s.order.OrderNo == ""
	if creating {
		lr, err = s.o.ledger.CreateOrder(ctx, call, req)
	} else {
		lr, err = s.o.ledger.ChangeOrder(ctx, call, req)
	}
	if lr == nil {
		lr = &connectors.LedgerResult{}
	}
	if err == nil && creating && lr.OrderNo == "" {
		err = failure.NewExternal("ledger.create", "", "", "ledger did not assign an order number")
	}
	s.ledger = lr

	if err != nil {
		s.log.WithError(err).Warn("ledger step failed")
		s.result.to(StateLedgerFailed)
		s.failLedgerBatch(err)
		return false
	}

	for _, w := range lr.Warnings {
		s.result.Warnings = append(s.result.Warnings, outcome(w.ItemNo, "", stageLedger, w))
	}
	s.result.to(StateLedgerApplied)
	return true
}

func (s *saga) ledgerChange(t *touch, frag *connectors.PlannerResponseLine) mapper.ItemChange {
	qty, plant, date, confirm := t.line.Quantity, t.line.Plant, t.line.RequestDate, 0.0
	if frag != nil {
		if s.plan.Split[t.itemNo()] {
			qty = frag.Quantity
		}
		if frag.WarehouseCode != "" {
			plant = frag.WarehouseCode
		}
		if d := frag.Dispatch(); d != nil {
			date = d
		}
		confirm = confirmQty(*frag)
	}

	switch {
	case t.requestType == model.RequestTypeDelete:
		return mapper.RejectItem(t.line, s.o.cfg.LedgerRejectReason)
	case t.created:
		return mapper.NewItem(t.line, qty, plant, date, confirm)
	case t.undo:
		c := mapper.AmendItem(&t.before, qty, plant, date, confirm)
		c.Item[mapper.ItemReasonReject] = ""
		return c
	}
	return mapper.AmendItem(&t.before, qty, plant, date, confirm)
}

// confirmQty is what the Planner may commit: the allocated quantity for on-hand
// stock, nothing otherwise.
func confirmQty(frag connectors.PlannerResponseLine) float64 {
	if frag.OnHandStock {
		return frag.Quantity
	}
	return 0
}

func (s *saga) failLedgerBatch(err error) {
	byItem := map[string]connectors.LineFailure{}
	for _, f := range s.ledger.Failures {
		if f.ItemNo != "" {
			byItem[f.ItemNo] = f
		}
	}
	doc := failureOf("", err)

	report := func(line *model.OrderLine, requestType string) {
		f, ok := byItem[line.ItemNo]
		if !ok {
			f = doc
			f.ItemNo = line.ItemNo
		}
		s.fail(line, requestType, stageLedger, f)
	}
	for _, t := range s.planned {
		for _, a := range s.plan.For(t.itemNo()) {
			report(a.Line, t.requestType)
		}
	}
	for _, t := range s.direct {
		report(t.line, t.requestType)
	}
}

// rollback releases the Planner reservations of a batch the Ledger refused and
// flags the lines for attention.
func (s *saga) rollback(ctx context.Context) {
	if len(s.planned) > 0 {
		s.releasePlanner(ctx)
		if err := s.o.orders.UpdateAttention(ctx, s.order.ID, itemNos(s.planned), []attention.Flag{attention.R5}, nil); err != nil {
			s.log.WithError(err).Error("failed to flag rolled back lines")
		}
		for _, t := range s.planned {
			attention.Mark(t.line, attention.R5)
		}
	}
	s.result.to(StateRolledBack)
}

func (s *saga) releasePlanner(ctx context.Context) {
	var lines []connectors.ConfirmLine
	if s.plan != nil {
		for _, a := range s.plan.Allocations {
			lines = append(lines, connectors.ConfirmLine{
				LineNumber:         a.Response.LineNumber,
				OriginalLineNumber: a.SourceItemNo,
				Status:             connectors.ConfirmRollback,
			})
		}
	} else {
		for _, t := range s.planned {
			lines = append(lines, connectors.ConfirmLine{
				LineNumber:         t.itemNo(),
				OriginalLineNumber: t.itemNo(),
				Status:             connectors.ConfirmRollback,
			})
		}
	}
	if len(lines) == 0 {
		return
	}

	_, err := s.o.planner.Confirm(ctx, s.call(itemNos(s.planned), true), connectors.ConfirmRequest{
		HeaderCode:         s.headerCode,
		OriginalHeaderCode: s.headerCode,
		Lines:              lines,
	})
	if err != nil {
		s.log.WithError(err).Warn("planner rollback failed, left for retry")
		s.result.Warnings = append(s.result.Warnings, outcome("", connectors.ConfirmRollback, stageConfirm, failureOf("", err)))
	}
}

// commit confirms the Planner reservations, settles every line and persists the run.
// The Ledger change stands whatever happens here.
func (s *saga) commit(ctx context.Context) error {
	if s.order.OrderNo == "" {
		s.order.OrderNo = s.ledger.OrderNo
	}

	confirmFailed := s.confirmPlanner(ctx)

	var updated []*model.OrderLine
	for _, t := range s.planned {
		for _, a := range s.plan.For(t.itemNo()) {
			s.settle(t, a.Line, &a.Response)
			if confirmFailed {
				attention.Mark(a.Line, attention.R5)
			}
			if !a.New {
				updated = append(updated, a.Line)
			}
		}
	}
	for _, t := range s.direct {
		s.settle(t, t.line, nil)
		updated = append(updated, t.line)
	}
	s.plan.MarkOrigins()
	s.refreshOrder()

	err := s.o.orders.ApplyChangeSet(ctx, repository.ChangeSet{
		Order:   s.order,
		Updated: updated,
		Plan:    s.plan,
	}, s.o.materializer)
	if err != nil {
		s.persistFailed(ctx, err)
		return err
	}

	msg := ""
	if confirmFailed {
		msg = "planner confirm pending retry"
	}
	for _, t := range s.planned {
		for _, a := range s.plan.For(t.itemNo()) {
			o := LineOutcome{ItemNo: a.Line.ItemNo, RequestType: t.requestType, Message: msg}
			if a.New {
				o.OriginalItemNo = a.SourceItemNo
			}
			s.result.Succeeded = append(s.result.Succeeded, o)
		}
	}
	for _, t := range s.direct {
		s.result.Succeeded = append(s.result.Succeeded, LineOutcome{ItemNo: t.itemNo(), RequestType: t.requestType})
	}

	if confirmFailed {
		s.result.to(StateNeedsRetry)
	} else {
		s.result.to(StateCommitted)
	}
	return nil
}

// confirmPlanner commits the Planner side with the quantities the Ledger accepted.
// It reports whether the confirm failed and was left for the retry sweep.
func (s *saga) confirmPlanner(ctx context.Context) bool {
	if len(s.planned) == 0 {
		return false
	}

	lines := make([]connectors.ConfirmLine, 0, len(s.plan.Allocations))
	items := make([]string, 0, len(s.plan.Allocations))
	for _, a := range s.plan.Allocations {
		items = append(items, a.Line.ItemNo)
		qty := 0.0
		if a.Response.OnHandStock {
			qty = confirmQty(a.Response)
			if sch, ok := s.ledger.Schedules[a.Line.ItemNo]; ok {
				qty = sch.ConfirmQty
			}
		}
		lines = append(lines, connectors.ConfirmLine{
			LineNumber:              a.Line.ItemNo,
			OriginalLineNumber:      a.Response.LineNumber,
			OnHandQuantityConfirmed: qty,
			Status:                  connectors.ConfirmCommit,
		})
	}

	// The sweep clears R5 on exactly the logged items, split lines included.
	_, err := s.o.planner.Confirm(ctx, s.call(items, true), connectors.ConfirmRequest{
		HeaderCode:         s.order.HeaderCode(),
		OriginalHeaderCode: s.headerCode,
		Lines:              lines,
	})
	if err != nil {
		s.log.WithError(err).Warn("planner confirm failed, left for retry")
		s.result.Warnings = append(s.result.Warnings, outcome("", connectors.ConfirmCommit, stageConfirm, failureOf("", err)))
		return true
	}
	return false
}

// settle writes the outcome of the run onto one line.
func (s *saga) settle(t *touch, line *model.OrderLine, frag *connectors.PlannerResponseLine) {
	line.Draft = false

	onHand := false
	if frag != nil {
		onHand = frag.OnHandStock
		if s.plan.Split[t.itemNo()] {
			line.Quantity = frag.Quantity
		}
		if frag.WarehouseCode != "" {
			line.Plant = frag.WarehouseCode
		}
		line.ConfirmedDate = frag.Dispatch()

		if line.IPlan == nil {
			line.IPlan = &model.LineIPlan{}
		}
		split.MirrorIPlan(line.IPlan, *frag)
		line.IPlan.RequestType = t.requestType
		line.IPlan.InquiryMethod = line.InquiryMethod
		line.IPlan.LocationCode = s.order.ShipToCode
		line.IPlan.RequestUnit = line.Unit
		if line.IPlan.AtpCtp == model.AtpCtpCTP {
			line.ProductionStatus = frag.Status
		}
	}

	if sch, ok := s.ledger.Schedules[line.ItemNo]; ok {
		line.AssignedQuantity = sch.ConfirmQty
		if line.ConfirmedDate == nil {
			line.ConfirmedDate = sch.Date()
		}
	} else if frag != nil {
		line.AssignedQuantity = confirmQty(*frag)
	}
	if item, ok := s.ledger.Items[line.ItemNo]; ok {
		if !item.NetValue.IsZero() {
			line.NetValue = item.NetValue
		}
		if line.Plant == "" {
			line.Plant = item.Plant
		}
	}
	if line.AssignedQuantity > line.Quantity {
		line.AssignedQuantity = line.Quantity
	}

	if t.requestType == model.RequestTypeDelete {
		line.AssignedQuantity = 0
		line.SetItemStatus(model.ItemStatusCancel)
		return
	}

	if t.requestType != model.RequestTypeAmendment || sagaOwnedStatus[line.ItemStatusEN] {
		if onHand && line.AssignedQuantity == line.Quantity {
			line.SetItemStatus(model.ItemStatusFullCommittedOrder)
		} else {
			line.SetItemStatus(model.ItemStatusCreated)
		}
	}

	var signal *attention.Signal
	if frag != nil {
		signal = &attention.Signal{
			ForAttention:            frag.ForAttention,
			ConfirmAvailabilityDate: frag.ConfirmAvailability(),
			DispatchDate:            frag.Dispatch(),
		}
	}
	attention.Apply(line, attention.Evaluate(line, s.order.ETD, signal))
}

// Item statuses the saga itself assigns. Later statuses come from production and
// delivery and an amendment leaves them alone.
var sagaOwnedStatus = map[string]bool{
	"":                                  true,
	model.ItemStatusCreated:             true,
	model.ItemStatusAllocatedNonConfirm: true,
	model.ItemStatusConfirm:             true,
	model.ItemStatusFullCommittedOrder:  true,
}

// refreshOrder recomputes totals and status over the settled lines, the lines the
// split adds included.
func (s *saga) refreshOrder() {
	view := *s.order
	view.Lines = make([]model.OrderLine, 0, len(s.order.Lines)+len(s.plan.Created()))
	view.Lines = append(view.Lines, s.order.Lines...)
	for _, l := range s.plan.Created() {
		view.Lines = append(view.Lines, *l)
	}
	view.RecalculateTotals()
	view.ApplyTaxRate(s.o.cfg.TaxRate)
	status.Recompute(&view)

	s.order.TotalPrice = view.TotalPrice
	s.order.TaxAmount = view.TaxAmount
	s.order.Status = view.Status
}

// persistFailed handles a local write failure after the Ledger accepted the change.
// The change set was not written, so touched lines keep their previous values and
// draft lines stay drafts. The lines are flagged and the failure is captured for
// manual intervention.
func (s *saga) persistFailed(ctx context.Context, err error) {
	s.log.WithError(err).Error("failed to persist saga outcome")
	s.order.Status = s.statusWas
	Capture(ctx, s.o.exceptions, "order_saga", "controller", "orders.ApplyChangeSet", "fatal", err,
		map[string]interface{}{"order_id": s.order.ID, "order_no": s.order.OrderNo, "feature": s.feature})

	items := itemNos(s.planned)
	items = append(items, itemNos(s.direct)...)
	if uerr := s.o.orders.UpdateAttention(ctx, s.order.ID, items, []attention.Flag{attention.R5}, nil); uerr != nil {
		s.log.WithError(uerr).Error("failed to flag lines after persistence failure")
	}

	for _, t := range append(append([]*touch{}, s.planned...), s.direct...) {
		s.fail(t.line, t.requestType, stagePersist, failureOf(t.itemNo(), err))
	}
	s.result.to(StateNeedsRetry)
}

func (s *saga) fail(line *model.OrderLine, requestType, stage string, f connectors.LineFailure) {
	o := outcome(line.ItemNo, requestType, stage, f)
	o.OriginalItemNo = line.OriginalItemNo
	s.result.Failed = append(s.result.Failed, o)
}

func outcome(itemNo, requestType, stage string, f connectors.LineFailure) LineOutcome {
	if itemNo == "" {
		itemNo = f.ItemNo
	}
	return LineOutcome{
		ItemNo:      itemNo,
		RequestType: requestType,
		Stage:       stage,
		Code:        f.Code,
		FirstCode:   f.FirstCode,
		SecondCode:  f.SecondCode,
		Message:     f.Message,
	}
}

// failureOf turns an adapter error into a line failure, keeping the code of a
// structured failure.
func failureOf(itemNo string, err error) connectors.LineFailure {
	lf := connectors.LineFailure{ItemNo: itemNo, Message: err.Error()}
	var fe *failure.Error
	if errors.As(err, &fe) {
		lf.Code = fe.Code
		lf.FirstCode, lf.SecondCode = connectors.SplitReturnCode(fe.Code)
		if fe.Message != "" {
			lf.Message = fe.Message
		}
	}
	return lf
}
