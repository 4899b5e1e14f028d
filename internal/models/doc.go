// Package models defines the core domain models for splitevent.
//
// # Models
//
//   - Event: a shared context (a trip, a dinner, a house) that participants join
//   - Participant: a person identified by name and slug; may join many events
//   - EventParticipant: membership of a participant in an event
//   - Expense: a cost logged against an event, split by a SplittingMethod
//   - ExpenseParticipant: one participant's obligation on an expense
//   - PaymentProof: an uploaded file attached to an expense or an obligation
//
// # Money
//
// Every monetary value is a decimal.Decimal. Amounts are unit-less: an event
// has a single implicit currency. On the wire they are JSON numbers.
//
// # Design Principles
//
//  1. IDs are UUID strings generated by the store; slugs are human readable
//     and generated by the slug package.
//  2. Relationships are expressed with ID strings, never pointers between models.
//  3. Request and response payloads live next to the models they carry so the
//     service layer and the calculator share one vocabulary.
package models
