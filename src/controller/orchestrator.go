// Package controller runs the order saga: every create, change, cancel, undo and
// split goes through the Planner, then the Ledger, then local persistence.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"ordersaga/src/attention"
	"ordersaga/src/connectors"
	"ordersaga/src/failure"
	"ordersaga/src/locks"
	"ordersaga/src/model"
	"ordersaga/src/repository"
	"ordersaga/src/split"
)

const (
	FeatureCreateOrder = "create_order"
	FeatureChangeOrder = "change_order"
	FeatureCancelLines = "cancel_lines"
	FeatureUndoLines   = "undo_lines"
	FeatureSplitLine   = "split_line"
)

// ErrOrderNotFound is wrapped in the validation failure returned for unknown orders.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore is the persistence the orchestrator needs.
type OrderStore interface {
	CreateDraft(ctx context.Context, order *model.Order) error
	AddDraftLines(ctx context.Context, orderID uint, lines []*model.OrderLine) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	ApplyChangeSet(ctx context.Context, cs repository.ChangeSet, persister repository.SplitPersister) error
	UpdateAttention(ctx context.Context, orderID uint, itemNos []string, add, remove []attention.Flag) error
}

type PlannerAPI interface {
	Request(ctx context.Context, call connectors.Call, req connectors.PlannerRequest) (*connectors.PlannerResult, error)
	Confirm(ctx context.Context, call connectors.Call, req connectors.ConfirmRequest) (*connectors.ConfirmResult, error)
}

type LedgerAPI interface {
	CreateOrder(ctx context.Context, call connectors.Call, req connectors.LedgerOrderRequest) (*connectors.LedgerResult, error)
	ChangeOrder(ctx context.Context, call connectors.Call, req connectors.LedgerOrderRequest) (*connectors.LedgerResult, error)
}

// Deps are the collaborators of an Orchestrator. Log may be nil.
type Deps struct {
	Orders     OrderStore
	Exceptions ExceptionRecorder
	Calls      connectors.CallSink
	Planner    PlannerAPI
	Ledger     LedgerAPI
	Locker     locks.Locker
	Log        *logger.Entry
}

type Orchestrator struct {
	cfg          Config
	orders       OrderStore
	exceptions   ExceptionRecorder
	calls        connectors.CallSink
	planner      PlannerAPI
	ledger       LedgerAPI
	locker       locks.Locker
	materializer *split.Materializer
	log          *logger.Entry
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	log = log.WithField("component", "Orchestrator")

	locker := deps.Locker
	if locker == nil {
		locker = locks.NewLocalLocker()
	}

	return &Orchestrator{
		cfg:          cfg,
		orders:       deps.Orders,
		exceptions:   deps.Exceptions,
		calls:        deps.Calls,
		planner:      deps.Planner,
		ledger:       deps.Ledger,
		locker:       locker,
		materializer: split.NewMaterializer(log),
		log:          log,
	}
}

// LineInput describes a new line.
type LineInput struct {
	MaterialCode       string     `json:"materialCode"`
	ProductGroup       string     `json:"productGroup"`
	ItemCategory       string     `json:"itemCategory"`
	ContractMaterialID uint       `json:"contractMaterialId"`
	Quantity           float64    `json:"quantity"`
	Unit               string     `json:"unit"`
	RequestDate        *time.Time `json:"requestDate"`
	Plant              string     `json:"plant"`
	InquiryMethod      string     `json:"inquiryMethod"`
	Remark             string     `json:"remark"`
}

type CreateRequest struct {
	Type                string      `json:"type"`
	ContractNo          string      `json:"contractNo"`
	ProductGroup        string      `json:"productGroup"`
	SalesOrg            string      `json:"salesOrg"`
	DistributionChannel string      `json:"distributionChannel"`
	Division            string      `json:"division"`
	SoldToCode          string      `json:"soldToCode"`
	ShipToCode          string      `json:"shipToCode"`
	PONumber            string      `json:"poNumber"`
	Remark              string      `json:"remark"`
	ETD                 *time.Time  `json:"etd"`
	Lines               []LineInput `json:"lines"`
}

// LineUpdate changes an existing line. Nil fields are left as they are.
type LineUpdate struct {
	ItemNo        string     `json:"itemNo"`
	Quantity      *float64   `json:"quantity"`
	RequestDate   *time.Time `json:"requestDate"`
	Plant         *string    `json:"plant"`
	InquiryMethod *string    `json:"inquiryMethod"`
}

// ChangeRequest batches every kind of line change on one order into one saga run.
type ChangeRequest struct {
	OrderID   uint         `json:"-"`
	Updates   []LineUpdate `json:"updates"`
	Additions []LineInput  `json:"additions"`
	Cancel    []string     `json:"cancel"`
	Undo      []string     `json:"undo"`
}

type SplitPart struct {
	Quantity    float64    `json:"quantity"`
	RequestDate *time.Time `json:"requestDate"`
}

// SplitRequest splits one line. The first part stays on the line, every other part
// becomes a new line.
type SplitRequest struct {
	OrderID uint        `json:"-"`
	ItemNo  string      `json:"itemNo"`
	Parts   []SplitPart `json:"parts"`
}

// CreateOrder stores the order as a draft and runs it through the saga. The order
// number is assigned when the Ledger accepts it.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateRequest) (*ChangeResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	order := &model.Order{
		Type:                req.Type,
		Status:              model.OrderStatusReceived,
		ContractNo:          req.ContractNo,
		ProductGroup:        req.ProductGroup,
		SalesOrg:            req.SalesOrg,
		DistributionChannel: req.DistributionChannel,
		Division:            req.Division,
		SoldToCode:          req.SoldToCode,
		ShipToCode:          req.ShipToCode,
		PONumber:            req.PONumber,
		Remark:              req.Remark,
		ETD:                 req.ETD,
	}
	for i, in := range req.Lines {
		order.Lines = append(order.Lines, *draftLine(order, in, strconv.Itoa((i+1)*split.ItemNoStep)))
	}

	if err := o.orders.CreateDraft(ctx, order); err != nil {
		Capture(ctx, o.exceptions, "order_saga", "controller", "orders.CreateDraft", "error", err, nil)
		return nil, err
	}

	unlock, err := o.lockOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	touches := make([]*touch, 0, len(order.Lines))
	for i := range order.Lines {
		touches = append(touches, &touch{line: &order.Lines[i], requestType: model.RequestTypeNew, created: true})
	}
	return o.run(ctx, order, FeatureCreateOrder, touches)
}

// ChangeOrder applies updates, additions, cancellations and undos in one run.
func (o *Orchestrator) ChangeOrder(ctx context.Context, req ChangeRequest) (*ChangeResult, error) {
	return o.change(ctx, req, FeatureChangeOrder)
}

// CancelLines cancels lines through the saga as DELETE requests.
func (o *Orchestrator) CancelLines(ctx context.Context, orderID uint, itemNos []string) (*ChangeResult, error) {
	return o.change(ctx, ChangeRequest{OrderID: orderID, Cancel: itemNos}, FeatureCancelLines)
}

// UndoLines restores cancelled lines.
func (o *Orchestrator) UndoLines(ctx context.Context, orderID uint, itemNos []string) (*ChangeResult, error) {
	return o.change(ctx, ChangeRequest{OrderID: orderID, Undo: itemNos}, FeatureUndoLines)
}

func (o *Orchestrator) change(ctx context.Context, req ChangeRequest, feature string) (*ChangeResult, error) {
	unlock, err := o.lockOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := o.load(ctx, req.OrderID, feature)
	if err != nil {
		return nil, err
	}
	if err := validateChange(order, req); err != nil {
		return nil, err
	}

	// New lines are stored as drafts first so that a failed run leaves them visible.
	next := order.MaxItemNumber()
	added := make([]*model.OrderLine, 0, len(req.Additions))
	for _, in := range req.Additions {
		next += split.ItemNoStep
		added = append(added, draftLine(order, in, strconv.Itoa(next)))
	}
	if err := o.orders.AddDraftLines(ctx, order.ID, added); err != nil {
		Capture(ctx, o.exceptions, "order_saga", "controller", "orders.AddDraftLines", "error", err,
			map[string]interface{}{"order_id": order.ID})
		return nil, err
	}
	for _, l := range added {
		order.Lines = append(order.Lines, *l)
	}

	var touches []*touch
	for _, u := range req.Updates {
		line := order.LineByItemNo(u.ItemNo)
		t := &touch{line: line, before: *line, requestType: model.RequestTypeAmendment}
		if u.Quantity != nil {
			line.Quantity = *u.Quantity
		}
		if u.RequestDate != nil {
			d := *u.RequestDate
			line.RequestDate = &d
		}
		if u.Plant != nil {
			line.Plant = *u.Plant
		}
		if u.InquiryMethod != nil {
			line.InquiryMethod = *u.InquiryMethod
		}
		touches = append(touches, t)
	}
	for _, itemNo := range req.Cancel {
		line := order.LineByItemNo(itemNo)
		touches = append(touches, &touch{line: line, before: *line, requestType: model.RequestTypeDelete})
	}
	for _, itemNo := range req.Undo {
		line := order.LineByItemNo(itemNo)
		touches = append(touches, &touch{line: line, before: *line, requestType: model.RequestTypeNew, undo: true})
	}
	for _, l := range added {
		touches = append(touches, &touch{line: order.LineByItemNo(l.ItemNo), requestType: model.RequestTypeNew, created: true})
	}

	return o.run(ctx, order, feature, touches)
}

// SplitLine splits one line into parts numbered after the current highest item.
func (o *Orchestrator) SplitLine(ctx context.Context, req SplitRequest) (*ChangeResult, error) {
	unlock, err := o.lockOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := o.load(ctx, req.OrderID, FeatureSplitLine)
	if err != nil {
		return nil, err
	}
	if err := validateSplit(order, req); err != nil {
		return nil, err
	}

	src := order.LineByItemNo(req.ItemNo)
	next := order.MaxItemNumber()
	added := make([]*model.OrderLine, 0, len(req.Parts)-1)
	for _, part := range req.Parts[1:] {
		next += split.ItemNoStep
		line := split.CloneStatic(src)
		line.ItemNo = strconv.Itoa(next)
		line.OriginalItemNo = src.ItemNo
		line.Quantity = part.Quantity
		line.Plant = src.Plant
		if part.RequestDate != nil {
			d := *part.RequestDate
			line.RequestDate = &d
		}
		line.IPlan = &model.LineIPlan{
			InquiryMethod: line.InquiryMethod,
			RequestType:   model.RequestTypeNew,
			LocationCode:  order.ShipToCode,
			RequestUnit:   line.Unit,
		}
		added = append(added, line)
	}
	if err := o.orders.AddDraftLines(ctx, order.ID, added); err != nil {
		Capture(ctx, o.exceptions, "order_saga", "controller", "orders.AddDraftLines", "error", err,
			map[string]interface{}{"order_id": order.ID})
		return nil, err
	}
	for _, l := range added {
		order.Lines = append(order.Lines, *l)
	}

	// Pointers into order.Lines are taken only after the appends above.
	src = order.LineByItemNo(req.ItemNo)
	t := &touch{line: src, before: *src, requestType: model.RequestTypeAmendment}
	src.Quantity = req.Parts[0].Quantity
	if d := req.Parts[0].RequestDate; d != nil {
		v := *d
		src.RequestDate = &v
	}
	src.OriginalItemNo = src.ItemNo

	touches := []*touch{t}
	for _, l := range added {
		touches = append(touches, &touch{line: order.LineByItemNo(l.ItemNo), requestType: model.RequestTypeNew, created: true})
	}
	return o.run(ctx, order, FeatureSplitLine, touches)
}

func (o *Orchestrator) lockOrder(ctx context.Context, orderID uint) (locks.Unlock, error) {
	lockCtx, cancel := context.WithTimeout(ctx, o.cfg.OrderLockTimeout)
	defer cancel()

	unlock, err := o.locker.Acquire(lockCtx, locks.OrderKey(orderID), o.cfg.OrderLockTTL)
	if err != nil {
		o.log.WithField("order_id", orderID).WithError(err).Warn("order is busy")
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}
	return unlock, nil
}

func (o *Orchestrator) load(ctx context.Context, orderID uint, feature string) (*model.Order, error) {
	order, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &failure.Error{
			Kind:    failure.Validation,
			Op:      feature,
			Message: fmt.Sprintf("order %d not found", orderID),
			Err:     ErrOrderNotFound,
		}
	}
	return order, nil
}

func draftLine(order *model.Order, in LineInput, itemNo string) *model.OrderLine {
	group := in.ProductGroup
	if group == "" {
		group = order.ProductGroup
	}
	var requestDate *time.Time
	if in.RequestDate != nil {
		d := *in.RequestDate
		requestDate = &d
	}
	return &model.OrderLine{
		ItemNo:             itemNo,
		MaterialCode:       in.MaterialCode,
		ProductGroup:       group,
		ItemCategory:       in.ItemCategory,
		ContractMaterialID: in.ContractMaterialID,
		Quantity:           in.Quantity,
		Unit:               in.Unit,
		RequestDate:        requestDate,
		Plant:              in.Plant,
		InquiryMethod:      in.InquiryMethod,
		Remark:             in.Remark,
		LineStatus:         model.LineStatusEnable,
		Draft:              true,
		IPlan: &model.LineIPlan{
			InquiryMethod: in.InquiryMethod,
			RequestType:   model.RequestTypeNew,
			LocationCode:  order.ShipToCode,
			RequestUnit:   in.Unit,
		},
	}
}
