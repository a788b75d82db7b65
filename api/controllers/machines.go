package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/api/validators"
	"github.com/vendhub/vendhub-backend/internal/inventory"
	machinesvc "github.com/vendhub/vendhub-backend/internal/machines"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

type createMachineRequest struct {
	Code     string `json:"code" validate:"required,min=2,max=32"`
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
}

type updateMachineRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

type restockSlotRequest struct {
	Code string `json:"code" validate:"required"`
	Qty  int    `json:"qty" validate:"required,gt=0"`
}

type machineResponse struct {
	MachineID uuid.UUID `json:"machine_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Active    bool      `json:"active"`
}

type slotResponse struct {
	SlotID    uuid.UUID `json:"slot_id"`
	ProductID uuid.UUID `json:"product_id"`
	Code      string    `json:"code"`
	Quantity  int       `json:"quantity"`
	Capacity  int       `json:"capacity"`
}

func newMachineResponse(machine *models.Machine) machineResponse {
	return machineResponse{
		MachineID: machine.ID,
		Code:      machine.Code,
		Name:      machine.Name,
		Location:  machine.Location,
		Active:    machine.Active,
	}
}

func newSlotResponse(slot models.StockSlot) slotResponse {
	return slotResponse{
		SlotID:    slot.ID,
		ProductID: slot.ProductID,
		Code:      slot.Code,
		Quantity:  slot.Quantity,
		Capacity:  slot.Capacity,
	}
}

// CreateMachine registers a vending machine.
func CreateMachine(svc machinesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		var payload createMachineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		machine, err := svc.Create(r.Context(), machinesvc.CreateMachineInput{
			Code:     payload.Code,
			Name:     payload.Name,
			Location: payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newMachineResponse(machine))
	}
}

// UpdateMachine patches the mutable machine fields.
func UpdateMachine(svc machinesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		machineID, err := pathUUID(r, "machineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateMachineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		machine, err := svc.Update(r.Context(), machineID, machinesvc.UpdateMachineInput{
			Name:     payload.Name,
			Location: payload.Location,
			Active:   payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newMachineResponse(machine))
	}
}

// ListMachines returns the registry.
func ListMachines(svc machinesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		machines, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]machineResponse, 0, len(machines))
		for i := range machines {
			out = append(out, newMachineResponse(&machines[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ListMachineSlots returns one machine's stock slots.
func ListMachineSlots(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		machineID, err := pathUUID(r, "machineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slots, err := svc.ListByMachine(r.Context(), machineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]slotResponse, 0, len(slots))
		for _, slot := range slots {
			out = append(out, newSlotResponse(slot))
		}
		responses.WriteSuccess(w, out)
	}
}

// RestockSlot adds stock to one slot, bounded by its capacity.
func RestockSlot(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		machineID, err := pathUUID(r, "machineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockSlotRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.RestockSlot(r.Context(), machineID, payload.Code, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSlotResponse(*slot))
	}
}
