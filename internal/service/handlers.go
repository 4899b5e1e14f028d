package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitevent/internal/models"
)

const (
	// EventServiceName is the fully-qualified name of the EventService.
	EventServiceName = "splitevent.v1.EventService"
	// ExpenseServiceName is the fully-qualified name of the ExpenseService.
	ExpenseServiceName = "splitevent.v1.ExpenseService"
)

// Procedure paths. They are the HTTP routes handled by the services.
const (
	EventServiceCreateEventProcedure           = "/splitevent.v1.EventService/CreateEvent"
	EventServiceGetEventProcedure              = "/splitevent.v1.EventService/GetEvent"
	EventServiceUpdateEventProcedure           = "/splitevent.v1.EventService/UpdateEvent"
	EventServiceJoinEventProcedure             = "/splitevent.v1.EventService/JoinEvent"
	EventServiceListEventParticipantsProcedure = "/splitevent.v1.EventService/ListEventParticipants"
	EventServiceGetEventBalancesProcedure      = "/splitevent.v1.EventService/GetEventBalances"

	ExpenseServiceCreateExpenseProcedure           = "/splitevent.v1.ExpenseService/CreateExpense"
	ExpenseServiceGetExpenseProcedure              = "/splitevent.v1.ExpenseService/GetExpense"
	ExpenseServiceUpdateExpenseProcedure           = "/splitevent.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure           = "/splitevent.v1.ExpenseService/DeleteExpense"
	ExpenseServiceListExpensesProcedure            = "/splitevent.v1.ExpenseService/ListExpenses"
	ExpenseServiceListExpenseParticipantsProcedure = "/splitevent.v1.ExpenseService/ListExpenseParticipants"
	ExpenseServicePayExpenseProcedure              = "/splitevent.v1.ExpenseService/PayExpense"
	ExpenseServiceUploadPaymentProofsProcedure     = "/splitevent.v1.ExpenseService/UploadPaymentProofs"
	ExpenseServiceDeletePaymentProofsProcedure     = "/splitevent.v1.ExpenseService/DeletePaymentProofs"
)

// NewEventServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewEventServiceHandler(svc *EventService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	handle(mux, EventServiceCreateEventProcedure, svc.CreateEvent, opts)
	handle(mux, EventServiceGetEventProcedure, svc.GetEvent, opts)
	handle(mux, EventServiceUpdateEventProcedure, svc.UpdateEvent, opts)
	handle(mux, EventServiceJoinEventProcedure, svc.JoinEvent, opts)
	handle(mux, EventServiceListEventParticipantsProcedure, svc.ListEventParticipants, opts)
	handle(mux, EventServiceGetEventBalancesProcedure, svc.GetEventBalances, opts)
	return "/" + EventServiceName + "/", mux
}

// NewExpenseServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewExpenseServiceHandler(svc *ExpenseService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	handle(mux, ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts)
	handle(mux, ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts)
	handle(mux, ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts)
	handle(mux, ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts)
	handle(mux, ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts)
	handle(mux, ExpenseServiceListExpenseParticipantsProcedure, svc.ListExpenseParticipants, opts)
	handle(mux, ExpenseServicePayExpenseProcedure, svc.PayExpense, opts)
	handle(mux, ExpenseServiceUploadPaymentProofsProcedure, svc.UploadPaymentProofs, opts)
	handle(mux, ExpenseServiceDeletePaymentProofsProcedure, svc.DeletePaymentProofs, opts)
	return "/" + ExpenseServiceName + "/", mux
}

func withJSON(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
}

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// EventServiceClient is a client for the EventService.
type EventServiceClient struct {
	createEvent           *connect.Client[models.CreateEventRequest, models.CreateEventResponse]
	getEvent              *connect.Client[models.GetEventRequest, models.Event]
	updateEvent           *connect.Client[models.UpdateEventRequest, models.Event]
	joinEvent             *connect.Client[models.JoinEventRequest, models.JoinEventResponse]
	listEventParticipants *connect.Client[models.ListEventParticipantsRequest, models.ListEventParticipantsResponse]
	getEventBalances      *connect.Client[models.GetEventBalancesRequest, models.GetEventBalancesResponse]
}

// NewEventServiceClient constructs a client for the EventService. baseURL is
// the server root, e.g. http://localhost:8080.
func NewEventServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *EventServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &EventServiceClient{
		createEvent: connect.NewClient[models.CreateEventRequest, models.CreateEventResponse](
			httpClient, baseURL+EventServiceCreateEventProcedure, opts...),
		getEvent: connect.NewClient[models.GetEventRequest, models.Event](
			httpClient, baseURL+EventServiceGetEventProcedure, opts...),
		updateEvent: connect.NewClient[models.UpdateEventRequest, models.Event](
			httpClient, baseURL+EventServiceUpdateEventProcedure, opts...),
		joinEvent: connect.NewClient[models.JoinEventRequest, models.JoinEventResponse](
			httpClient, baseURL+EventServiceJoinEventProcedure, opts...),
		listEventParticipants: connect.NewClient[models.ListEventParticipantsRequest, models.ListEventParticipantsResponse](
			httpClient, baseURL+EventServiceListEventParticipantsProcedure, opts...),
		getEventBalances: connect.NewClient[models.GetEventBalancesRequest, models.GetEventBalancesResponse](
			httpClient, baseURL+EventServiceGetEventBalancesProcedure, opts...),
	}
}

// CreateEvent calls splitevent.v1.EventService.CreateEvent.
func (c *EventServiceClient) CreateEvent(ctx context.Context, req *connect.Request[models.CreateEventRequest]) (*connect.Response[models.CreateEventResponse], error) {
	return c.createEvent.CallUnary(ctx, req)
}

// GetEvent calls splitevent.v1.EventService.GetEvent.
func (c *EventServiceClient) GetEvent(ctx context.Context, req *connect.Request[models.GetEventRequest]) (*connect.Response[models.Event], error) {
	return c.getEvent.CallUnary(ctx, req)
}

// UpdateEvent calls splitevent.v1.EventService.UpdateEvent.
func (c *EventServiceClient) UpdateEvent(ctx context.Context, req *connect.Request[models.UpdateEventRequest]) (*connect.Response[models.Event], error) {
	return c.updateEvent.CallUnary(ctx, req)
}

// JoinEvent calls splitevent.v1.EventService.JoinEvent.
func (c *EventServiceClient) JoinEvent(ctx context.Context, req *connect.Request[models.JoinEventRequest]) (*connect.Response[models.JoinEventResponse], error) {
	return c.joinEvent.CallUnary(ctx, req)
}

// ListEventParticipants calls splitevent.v1.EventService.ListEventParticipants.
func (c *EventServiceClient) ListEventParticipants(ctx context.Context, req *connect.Request[models.ListEventParticipantsRequest]) (*connect.Response[models.ListEventParticipantsResponse], error) {
	return c.listEventParticipants.CallUnary(ctx, req)
}

// GetEventBalances calls splitevent.v1.EventService.GetEventBalances.
func (c *EventServiceClient) GetEventBalances(ctx context.Context, req *connect.Request[models.GetEventBalancesRequest]) (*connect.Response[models.GetEventBalancesResponse], error) {
	return c.getEventBalances.CallUnary(ctx, req)
}

// ExpenseServiceClient is a client for the ExpenseService.
type ExpenseServiceClient struct {
	createExpense           *connect.Client[models.CreateExpenseRequest, models.Expense]
	getExpense              *connect.Client[models.ExpenseRequest, models.Expense]
	updateExpense           *connect.Client[models.UpdateExpenseRequest, models.Expense]
	deleteExpense           *connect.Client[models.ExpenseRequest, models.DeleteExpenseResponse]
	listExpenses            *connect.Client[models.ListExpensesRequest, models.ListExpensesResponse]
	listExpenseParticipants *connect.Client[models.ListExpenseParticipantsRequest, models.ListExpenseParticipantsResponse]
	payExpense              *connect.Client[models.PayExpenseRequest, models.PayExpenseResponse]
	uploadPaymentProofs     *connect.Client[models.UploadPaymentProofsRequest, models.UploadPaymentProofsResponse]
	deletePaymentProofs     *connect.Client[models.DeletePaymentProofsRequest, models.DeletePaymentProofsResponse]
}

// NewExpenseServiceClient constructs a client for the ExpenseService.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &ExpenseServiceClient{
		createExpense: connect.NewClient[models.CreateExpenseRequest, models.Expense](
			httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		getExpense: connect.NewClient[models.ExpenseRequest, models.Expense](
			httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		updateExpense: connect.NewClient[models.UpdateExpenseRequest, models.Expense](
			httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[models.ExpenseRequest, models.DeleteExpenseResponse](
			httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		listExpenses: connect.NewClient[models.ListExpensesRequest, models.ListExpensesResponse](
			httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		listExpenseParticipants: connect.NewClient[models.ListExpenseParticipantsRequest, models.ListExpenseParticipantsResponse](
			httpClient, baseURL+ExpenseServiceListExpenseParticipantsProcedure, opts...),
		payExpense: connect.NewClient[models.PayExpenseRequest, models.PayExpenseResponse](
			httpClient, baseURL+ExpenseServicePayExpenseProcedure, opts...),
		uploadPaymentProofs: connect.NewClient[models.UploadPaymentProofsRequest, models.UploadPaymentProofsResponse](
			httpClient, baseURL+ExpenseServiceUploadPaymentProofsProcedure, opts...),
		deletePaymentProofs: connect.NewClient[models.DeletePaymentProofsRequest, models.DeletePaymentProofsResponse](
			httpClient, baseURL+ExpenseServiceDeletePaymentProofsProcedure, opts...),
	}
}

// CreateExpense calls splitevent.v1.ExpenseService.CreateExpense.
func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[models.CreateExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.createExpense.CallUnary(ctx, req)
}

// GetExpense calls splitevent.v1.ExpenseService.GetExpense.
func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[models.ExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.getExpense.CallUnary(ctx, req)
}

// UpdateExpense calls splitevent.v1.ExpenseService.UpdateExpense.
func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[models.UpdateExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

// DeleteExpense calls splitevent.v1.ExpenseService.DeleteExpense.
func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[models.ExpenseRequest]) (*connect.Response[models.DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

// ListExpenses calls splitevent.v1.ExpenseService.ListExpenses.
func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[models.ListExpensesRequest]) (*connect.Response[models.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

// ListExpenseParticipants calls splitevent.v1.ExpenseService.ListExpenseParticipants.
func (c *ExpenseServiceClient) ListExpenseParticipants(ctx context.Context, req *connect.Request[models.ListExpenseParticipantsRequest]) (*connect.Response[models.ListExpenseParticipantsResponse], error) {
	return c.listExpenseParticipants.CallUnary(ctx, req)
}

// PayExpense calls splitevent.v1.ExpenseService.PayExpense.
func (c *ExpenseServiceClient) PayExpense(ctx context.Context, req *connect.Request[models.PayExpenseRequest]) (*connect.Response[models.PayExpenseResponse], error) {
	return c.payExpense.CallUnary(ctx, req)
}

// UploadPaymentProofs calls splitevent.v1.ExpenseService.UploadPaymentProofs.
func (c *ExpenseServiceClient) UploadPaymentProofs(ctx context.Context, req *connect.Request[models.UploadPaymentProofsRequest]) (*connect.Response[models.UploadPaymentProofsResponse], error) {
	return c.uploadPaymentProofs.CallUnary(ctx, req)
}

// DeletePaymentProofs calls splitevent.v1.ExpenseService.DeletePaymentProofs.
func (c *ExpenseServiceClient) DeletePaymentProofs(ctx context.Context, req *connect.Request[models.DeletePaymentProofsRequest]) (*connect.Response[models.DeletePaymentProofsResponse], error) {
	return c.deletePaymentProofs.CallUnary(ctx, req)
}
