package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"

	"naturelife-cert/internal/models"
	"naturelife-cert/internal/repository"
)

// ListDonations returns all donations without donor email addresses
func (h *Handlers) ListDonations(c *gin.Context) {
	donations, err := h.repo.ListDonations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch donations",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	items := make([]DonationListItem, 0, len(donations))
	for i := range donations {
		items = append(items, toListItem(&donations[i]))
	}
	c.JSON(http.StatusOK, items)
}

// CreateDonation records a donation submitted through the web form
func (h *Handlers) CreateDonation(c *gin.Context) {
	req, ok := bindDonation(c)
	if !ok {
		return
	}

	donation := models.Donation{Source: models.SourceWeb}
	req.apply(&donation)

	if err := h.repo.CreateDonation(&donation); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create donation",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if h.metrics != nil {
		h.metrics.Donations.Inc()
	}

	logrus.WithField("donation_id", donation.ID).Info("Donation created")
	c.JSON(http.StatusCreated, CreateDonationResult{
		Donation:       toResponse(&donation),
		RedirectTo:     "/api/v1/donations",
		CertificateURL: fmt.Sprintf("/api/v1/donations/%d/certificate", donation.ID),
	})
}

// GetDonation returns a specific donation
func (h *Handlers) GetDonation(c *gin.Context) {
	donation, ok := h.loadDonation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResponse(donation))
}

// UpdateDonation replaces the fields of a donation
func (h *Handlers) UpdateDonation(c *gin.Context) {
	donation, ok := h.loadDonation(c)
	if !ok {
		return
	}
	req, ok := bindDonation(c)
	if !ok {
		return
	}
	req.apply(donation)

	if err := h.repo.UpdateDonation(donation); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update donation",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, toResponse(donation))
}

// DeleteDonation deletes a donation
func (h *Handlers) DeleteDonation(c *gin.Context) {
	id, ok := parseID(c, "donation")
	if !ok {
		return
	}

	if err := h.repo.DeleteDonation(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete donation",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if h.metrics != nil {
		h.metrics.Donations.Dec()
	}

	c.JSON(http.StatusOK, gin.H{"message": "Donation deleted successfully"})
}

// GetCertificate renders the certificate PDF for a stored donation
func (h *Handlers) GetCertificate(c *gin.Context) {
	donation, ok := h.loadDonation(c)
	if !ok {
		return
	}

	art, err := h.generator.Generate(donation.Record())
	if err != nil {
		logrus.WithError(err).WithField("donation_id", donation.ID).Error("Failed to render certificate")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "certificate_error",
			Message: "Failed to render certificate",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	c.Data(http.StatusOK, "application/pdf", art.Data)
}

func (h *Handlers) loadDonation(c *gin.Context) (*models.Donation, bool) {
	id, ok := parseID(c, "donation")
	if !ok {
		return nil, false
	}

	donation, err := h.repo.GetDonation(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(c)
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch donation",
			Code:    http.StatusInternalServerError,
		})
		return nil, false
	}
	return donation, true
}

func bindDonation(c *gin.Context) (*DonationRequest, bool) {
	var req DonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body")
		return nil, false
	}
	if !req.Donation.IsPositive() {
		validationError(c, "Donation must be greater than zero")
		return nil, false
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(req.Currency)))
	if err != nil {
		validationError(c, "Currency must be an ISO 4217 code")
		return nil, false
	}
	req.Currency = unit.String()
	return &req, true
}

func (r *DonationRequest) apply(d *models.Donation) {
	d.FirstName = strings.TrimSpace(r.FirstName)
	d.LastName = strings.TrimSpace(r.LastName)
	d.Country = strings.TrimSpace(r.Country)
	d.Amount = r.Donation
	d.Currency = r.Currency
	d.Email = strings.TrimSpace(r.Email)
}

func parseID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: fmt.Sprintf("Invalid %s ID", what),
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return uint(id), true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "Donation not found",
		Code:    http.StatusNotFound,
	})
}

func validationError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: msg,
		Code:    http.StatusBadRequest,
	})
}
