// Package catalog lists products and creates them through the admin upload
// endpoint, which takes a multipart form with the product image.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
)

type Client struct {
	api    *api.Client
	logger *slog.Logger
}

func NewClient(apiClient *api.Client, logger *slog.Logger) *Client {
	return &Client{api: apiClient, logger: logger}
}

func (c *Client) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.api.Get(ctx, "/api/products", &products); err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, "Could not fetch products. Please try again."))
	}
	return products, nil
}

// NewProduct is the product creation form. Image is streamed into the
// multipart request under ImageName.
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	Category    string
	ImageName   string
	Image       io.Reader
}

func (p NewProduct) validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("product name is required")
	case p.Description == "":
		return fmt.Errorf("product description is required")
	case p.Price <= 0:
		return fmt.Errorf("product price must be positive")
	case p.Stock < 0:
		return fmt.Errorf("product stock cannot be negative")
	case p.Category == "":
		return fmt.Errorf("product category is required")
	case p.Image == nil || p.ImageName == "":
		return fmt.Errorf("product image is required")
	}
	return nil
}

func (c *Client) Create(ctx context.Context, product NewProduct) (*domain.Product, error) {
	if err := product.validate(); err != nil {
		return nil, err
	}

	var created domain.Product
	err := c.api.PostForm(ctx, "/api/products", func(w *multipart.Writer) error {
		fields := map[string]string{
			"name":        product.Name,
			"description": product.Description,
			"price":       strconv.FormatFloat(product.Price, 'f', 2, 64),
			"stock":       strconv.Itoa(product.Stock),
			"category":    product.Category,
		}
		for name, value := range fields {
			if err := w.WriteField(name, value); err != nil {
				return err
			}
		}
		part, err := w.CreateFormFile("image", product.ImageName)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, product.Image)
		return err
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, "Could not create product. Please try again."))
	}

	c.logger.Info("product created", "product_id", created.ID, "name", created.Name)
	return &created, nil
}
