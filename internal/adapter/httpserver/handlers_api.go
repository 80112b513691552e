package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/radudiaconu0/sockudo/internal/domain"
	apperrors "github.com/radudiaconu0/sockudo/internal/platform/errors"
)

const channelQueryTimeout = 5 * time.Second

type batchRequest struct {
	Batch []domain.PublishRequest `json:"batch"`
}

type channelInfo struct {
	Occupied          bool `json:"occupied"`
	SubscriptionCount int  `json:"subscription_count"`
}

type channelSummary struct {
	SubscriptionCount int `json:"subscription_count"`
}

type channelsResponse struct {
	Channels map[string]channelSummary `json:"channels"`
}

type socketsResponse struct {
	Sockets []string `json:"sockets"`
}

func (s *Server) handlePublishEvent(c echo.Context) error {
	appID := c.Param("app_id")
	if _, err := s.namespaces.Namespace(appID); err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	var req domain.PublishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.publisher.Publish(c.Request().Context(), appID, req); err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	if err := c.JSON(http.StatusOK, struct{}{}); err != nil {
		return fmt.Errorf("failed to write publish response: %w", err)
	}
	return nil
}

func (s *Server) handlePublishBatch(c echo.Context) error {
	appID := c.Param("app_id")
	if _, err := s.namespaces.Namespace(appID); err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.publisher.PublishBatch(c.Request().Context(), appID, req.Batch); err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	if err := c.JSON(http.StatusOK, struct{}{}); err != nil {
		return fmt.Errorf("failed to write batch response: %w", err)
	}
	return nil
}

// handleListChannels returns occupied channels, optionally filtered by the
// filter_by_prefix query parameter.
func (s *Server) handleListChannels(c echo.Context) error {
	appID := c.Param("app_id")
	ns, err := s.namespaces.Namespace(appID)
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	// Concurrent polls for the same app share one namespace round trip.
	result, err, _ := s.channelQueries.Do(appID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), channelQueryTimeout)
		defer cancel()
		return ns.Channels(ctx)
	})
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}
	counts := result.(map[string]int)

	prefix := c.QueryParam("filter_by_prefix")
	resp := channelsResponse{Channels: make(map[string]channelSummary)}
	for name, count := range counts {
		if count == 0 || !strings.HasPrefix(name, prefix) {
			continue
		}
		resp.Channels[name] = channelSummary{SubscriptionCount: count}
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write channels response: %w", err)
	}
	return nil
}

func (s *Server) handleChannelInfo(c echo.Context) error {
	appID := c.Param("app_id")
	ns, err := s.namespaces.Namespace(appID)
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	count, err := ns.ChannelCount(c.Request().Context(), c.Param("channel_name"))
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	if err := c.JSON(http.StatusOK, channelInfo{Occupied: count > 0, SubscriptionCount: count}); err != nil {
		return fmt.Errorf("failed to write channel response: %w", err)
	}
	return nil
}

func (s *Server) handleListSockets(c echo.Context) error {
	appID := c.Param("app_id")
	ns, err := s.namespaces.Namespace(appID)
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}

	sockets, err := ns.Sockets(c.Request().Context())
	if err != nil {
		return apperrors.AsStructuredError(err).WithContext("app_id", appID)
	}
	if sockets == nil {
		sockets = []string{}
	}

	if err := c.JSON(http.StatusOK, socketsResponse{Sockets: sockets}); err != nil {
		return fmt.Errorf("failed to write sockets response: %w", err)
	}
	return nil
}
