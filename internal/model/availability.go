package model

// AvailabilitySlot is a bookable window published by a provider.
type AvailabilitySlot struct {
	ID            int64        `json:"id"`
	StartDateTime LocalTime    `json:"startDateTime"`
	EndDateTime   LocalTime    `json:"endDateTime"`
	IsBooked      bool         `json:"isBooked"`
	IsRecurring   bool         `json:"isRecurring"`
	Notes         string       `json:"notes,omitempty"`
	Provider      *ProviderRef `json:"provider,omitempty"`
}
