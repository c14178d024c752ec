// Package admin reads the dashboard stats endpoint.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
)

type Stats struct {
	TotalOrders   int     `json:"totalOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalProducts int     `json:"totalProducts"`
	TotalUsers    int     `json:"totalUsers"`
	OrderGrowth   float64 `json:"orderGrowth"`
	RevenueGrowth float64 `json:"revenueGrowth"`
	ProductGrowth float64 `json:"productGrowth"`
	UserGrowth    float64 `json:"userGrowth"`
}

type Dashboard struct {
	Stats        Stats          `json:"stats"`
	RecentOrders []domain.Order `json:"recentOrders"`
}

type Client struct {
	api    *api.Client
	logger *slog.Logger
}

func NewClient(apiClient *api.Client, logger *slog.Logger) *Client {
	return &Client{api: apiClient, logger: logger}
}

func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var resp struct {
		Success bool      `json:"success"`
		Data    Dashboard `json:"data"`
	}
	if err := c.api.Get(ctx, "/api/admin/stats", &resp); err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, "Could not fetch dashboard stats."))
	}
	if !resp.Success {
		return nil, fmt.Errorf("could not fetch dashboard stats")
	}
	return &resp.Data, nil
}
