package httpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

const (
	searchCacheTTL = 10 * time.Minute
	refreshTimeout = 30 * time.Second
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	h := &handlers{
		service: service,
		places:  cache.New(searchCacheTTL, 2*searchCacheTTL),
	}

	v1 := app.Group("/api/v1")

	v1.Get("/locations", h.listLocations)
	v1.Get("/locations/search", h.searchLocations)
	v1.Post("/locations", h.addLocation)
	v1.Put("/locations/default", h.setDefault)
	v1.Delete("/locations/:name", h.removeLocation)
	v1.Post("/locations/:name/refresh", h.refresh)
	v1.Get("/locations/:name/dashboard", h.dashboard)
	v1.Get("/locations/:name/history", h.history)
	v1.Get("/dashboard", h.defaultDashboard)
}

type handlers struct {
	service *weather.Service
	// places remembers search results by remote id, so a location can be
	// added by id alone.
	places *cache.Cache
}

// toFiberError maps domain errors onto HTTP statuses.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrNoDashboard):
		return fiber.NewError(fiber.StatusNotFound, "no dashboard yet for requested location")
	case errors.Is(err, weather.ErrLocationExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, weather.ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, weather.ErrNoLocation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "refresh did not complete in time")
	case errors.Is(err, weather.ErrTransport):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func locationParam(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || strings.TrimSpace(name) == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid location name")
	}
	return name, nil
}

func (h *handlers) listLocations(c *fiber.Ctx) error {
	locs, err := h.service.Locations()
	if err != nil {
		return toFiberError(err)
	}
	return c.JSON(fiber.Map{"locations": locs})
}

// searchQuery holds query parameters for the search endpoint.
type searchQuery struct {
	Query string `validate:"required,max=100"`
	Limit int    `validate:"min=1,max=20"`
}

func (h *handlers) searchLocations(c *fiber.Ctx) error {
	req := searchQuery{
		Query: strings.TrimSpace(c.Query("q")),
		Limit: c.QueryInt("limit", weather.DefaultSearchLimit),
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	key := "q:" + strings.ToLower(req.Query) + ":" + strconv.Itoa(req.Limit)
	if cached, ok := h.places.Get(key); ok {
		return c.JSON(fiber.Map{"places": cached, "cached": true})
	}

	places, err := h.service.Search(c.UserContext(), req.Query, req.Limit)
	if err != nil {
		return toFiberError(err)
	}
	if places == nil {
		places = []weather.Place{}
	}

	h.places.SetDefault(key, places)
	for _, p := range places {
		if p.RemoteID != "" {
			h.places.SetDefault("id:"+p.RemoteID, p)
		}
	}
	return c.JSON(fiber.Map{"places": places, "cached": false})
}

// addLocationRequest is the body of POST /locations. Only the id is needed
// when the place came from a recent search.
type addLocationRequest struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	Latitude  string `json:"lat" validate:"omitempty,latitude"`
	Longitude string `json:"lon" validate:"omitempty,longitude"`
}

func (h *handlers) addLocation(c *fiber.Ctx) error {
	var req addLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	place := weather.Place{
		RemoteID:  req.ID,
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if cached, ok := h.places.Get("id:" + req.ID); ok {
		p := cached.(weather.Place)
		if place.Name == "" {
			place.Name = p.Name
		}
		if place.Latitude == "" || place.Longitude == "" {
			place.Latitude, place.Longitude = p.Latitude, p.Longitude
		}
	}
	if place.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "unknown place id; search for it first or supply a name")
	}

	loc, err := h.service.AddLocation(c.UserContext(), place)
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(loc)
}

type setDefaultRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *handlers) setDefault(c *fiber.Ctx) error {
	var req setDefaultRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.service.SetDefault(req.Name); err != nil {
		return toFiberError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) removeLocation(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveLocation(name); err != nil {
		return toFiberError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) refresh(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}

	if c.QueryBool("wait", false) {
		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()
		d, err := h.service.RefreshAndWait(ctx, name)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(d)
	}

	cycle, err := h.service.Refresh(c.UserContext(), name)
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"location": name,
		"cycleId":  cycle.ID,
	})
}

func (h *handlers) dashboard(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}
	d, err := h.service.Dashboard(name)
	if err != nil {
		return toFiberError(err)
	}
	return c.JSON(d)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}
	q.Location = name

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

func (h *handlers) history(c *fiber.Ctx) error {
	var req historyQuery
	if err := req.bind(c); err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	dashboards, err := h.service.History(req.Location, req.From, req.To)
	if err != nil {
		if errors.Is(err, weather.ErrNoDashboard) {
			return fiber.NewError(fiber.StatusNotFound, "no dashboard history for requested range")
		}
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"location":   req.Location,
		"from":       req.From,
		"to":         req.To,
		"dashboards": dashboards,
	})
}

// defaultDashboard serves the default location. With nothing saved it reports
// a "no_location" state instead of an error.
func (h *handlers) defaultDashboard(c *fiber.Ctx) error {
	loc, d, err := h.service.DefaultDashboard()
	switch {
	case errors.Is(err, weather.ErrNoLocation):
		return c.JSON(fiber.Map{
			"state":   "no_location",
			"message": "no location configured",
		})
	case errors.Is(err, weather.ErrNoDashboard):
		return c.JSON(fiber.Map{
			"state":    "pending",
			"location": loc,
		})
	case err != nil:
		return toFiberError(err)
	}
	return c.JSON(fiber.Map{
		"state":     "ok",
		"location":  loc,
		"dashboard": d,
	})
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
