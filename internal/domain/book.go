package domain

import "github.com/google/uuid"

// Book is a catalogue entry. Available acts as the single
// mutual-exclusion gate for lending: it is flipped to false when a
// borrowing is approved and back to true on return.
type Book struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ISBN      string    `json:"isbn"`
	Available bool      `json:"available"`
}

// BookReservation records that an availability check has been performed
// for a borrowing request. Keying it on the borrowing id makes the
// check-and-reserve step a no-op under event redelivery.
type BookReservation struct {
	BorrowingID uuid.UUID `json:"borrowing_id"`
	BookID      uuid.UUID `json:"book_id"`
	Available   bool      `json:"available"`
}
