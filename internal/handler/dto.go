package handler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// ----- requests -----

type customerReq struct {
	Name          string `json:"name" validate:"required,max=255"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address" validate:"max=500"`
	IDProofType   string `json:"id_proof_type" validate:"max=50"`
	IDProofNumber string `json:"id_proof_number" validate:"max=100"`
}

func (r customerReq) info() service.CustomerInfo {
	return service.CustomerInfo{
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		IDProofType:   r.IDProofType,
		IDProofNumber: r.IDProofNumber,
	}
}

type createBookingReq struct {
	Customer   customerReq     `json:"customer"`
	RoomTypeID uint64          `json:"room_type_id" validate:"required"`
	CheckIn    string          `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string          `json:"check_out" validate:"required,datetime=2006-01-02"`
	NumRooms   int             `json:"num_rooms" validate:"required,min=1"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Notes      string          `json:"notes" validate:"max=2000"`
}

type roomReq struct {
	RoomTypeID uint64 `json:"room_type_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

type multiRoomReq struct {
	Customer   customerReq     `json:"customer"`
	CheckIn    string          `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string          `json:"check_out" validate:"required,datetime=2006-01-02"`
	Rooms      []roomReq       `json:"rooms" validate:"required,min=1,dive"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Notes      string          `json:"notes" validate:"max=2000"`
}

type modifyBookingReq struct {
	CheckIn    *string `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut   *string `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	RoomTypeID *uint64 `json:"room_type_id" validate:"omitempty,min=1"`
	NumRooms   *int    `json:"num_rooms" validate:"omitempty,min=1"`
}

type updateBookingReq struct {
	AmountPaid *decimal.Decimal `json:"amount_paid"`
	Notes      *string          `json:"notes" validate:"omitempty,max=2000"`
}

type cancelBookingReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

type generateInventoryReq struct {
	Days int `json:"days" validate:"omitempty,min=1,max=730"`
}

func parseDate(v string) (time.Time, error) {
	d, err := utils.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return d, nil
}

// parseDates parses YYYY-MM-DD strings.
func parseDates(values ...string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ----- responses -----

type customerResp struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	IDProofType   string `json:"id_proof_type,omitempty"`
	IDProofNumber string `json:"id_proof_number,omitempty"`
}

type itemResp struct {
	ID            uint64          `json:"id"`
	RoomTypeID    uint64          `json:"room_type_id"`
	Quantity      int             `json:"quantity"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
}

type bookingResp struct {
	ID          uint64          `json:"id"`
	CustomerID  uint64          `json:"customer_id"`
	RoomTypeID  uint64          `json:"room_type_id"`
	CheckIn     string          `json:"check_in"`
	CheckOut    string          `json:"check_out"`
	Nights      int             `json:"nights"`
	NumRooms    int             `json:"num_rooms"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Customer    *customerResp   `json:"customer,omitempty"`
	Items       []itemResp      `json:"items,omitempty"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{
		ID:          b.ID,
		CustomerID:  b.CustomerID,
		RoomTypeID:  b.RoomTypeID,
		CheckIn:     utils.FormatDate(b.CheckIn),
		CheckOut:    utils.FormatDate(b.CheckOut),
		Nights:      b.Nights(),
		NumRooms:    b.NumRooms,
		TotalAmount: b.TotalAmount,
		AmountPaid:  b.AmountPaid,
		BalanceDue:  b.BalanceDue(),
		Status:      string(b.Status),
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toDetailResp(d *service.BookingDetail) bookingResp {
	out := toBookingResp(&d.Booking)
	if c := d.Customer; c != nil {
		out.Customer = &customerResp{
			ID:            c.ID,
			Name:          c.Name,
			Email:         c.Email,
			Phone:         c.Phone,
			Address:       c.Address,
			IDProofType:   c.IDProofType,
			IDProofNumber: c.IDProofNumber,
		}
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, itemResp{
			ID:            it.ID,
			RoomTypeID:    it.RoomTypeID,
			Quantity:      it.Quantity,
			PricePerNight: it.PricePerNight,
		})
	}
	return out
}

type roomTypeResp struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	TotalRooms int             `json:"total_rooms"`
	BasePrice  decimal.Decimal `json:"base_price"`
}

type availabilityResp struct {
	RoomTypeID   uint64          `json:"room_type_id"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	NumRooms     int             `json:"num_rooms"`
	IsAvailable  bool            `json:"is_available"`
	MinAvailable int             `json:"min_available"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type dailyResp struct {
	Date           string          `json:"date"`
	AvailableRooms int             `json:"available_rooms"`
	Price          decimal.Decimal `json:"price"`
}

type summaryResp struct {
	RoomTypeID     uint64          `json:"room_type_id"`
	RoomTypeName   string          `json:"room_type_name"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	MinAvailable   int             `json:"min_available"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	DailyBreakdown []dailyResp     `json:"daily_breakdown"`
}

func toSummaryResp(s model.RoomTypeAvailability) summaryResp {
	out := summaryResp{
		RoomTypeID:     s.RoomTypeID,
		RoomTypeName:   s.RoomTypeName,
		StartDate:      utils.FormatDate(s.StartDate),
		EndDate:        utils.FormatDate(s.EndDate),
		MinAvailable:   s.MinAvailable,
		TotalPrice:     s.TotalPrice,
		DailyBreakdown: make([]dailyResp, 0, len(s.DailyBreakdown)),
	}
	for _, d := range s.DailyBreakdown {
		out.DailyBreakdown = append(out.DailyBreakdown, dailyResp{
			Date:           utils.FormatDate(d.Date),
			AvailableRooms: d.AvailableRooms,
			Price:          d.Price,
		})
	}
	return out
}
