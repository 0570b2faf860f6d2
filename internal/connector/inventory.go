package connector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/model"
)

// InventoryClient reads warehouse stock and files transfer requests
// against the inventory system.
type InventoryClient struct {
	*Client
	agentName string
}

func NewInventoryClient(cfg *config.Config, logger *logrus.Logger) *InventoryClient {
	return &InventoryClient{
		Client:    NewClient(cfg.Inventory, cfg.API, logger),
		agentName: cfg.AgentName,
	}
}

// Warehouses returns every warehouse with its current stock, keyed by
// warehouse id.
func (c *InventoryClient) Warehouses(ctx context.Context) (map[string]model.Warehouse, error) {
	var payload struct {
		Warehouses []model.Warehouse `json:"warehouses"`
	}
	if err := c.getJSON(ctx, "warehouses", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch warehouses: %w", err)
	}
	out := make(map[string]model.Warehouse, len(payload.Warehouses))
	for _, wh := range payload.Warehouses {
		if wh.Items == nil {
			wh.Items = map[string]model.InventoryItem{}
		}
		out[wh.ID] = wh
	}
	return out, nil
}

// WarehouseInventory returns the stock of a single warehouse.
func (c *InventoryClient) WarehouseInventory(ctx context.Context, warehouseID string) (map[string]model.InventoryItem, error) {
	var payload struct {
		Items []model.InventoryItem `json:"items"`
	}
	path := fmt.Sprintf("warehouses/%s/inventory", warehouseID)
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch inventory for %s: %w", warehouseID, err)
	}
	items := make(map[string]model.InventoryItem, len(payload.Items))
	for _, item := range payload.Items {
		items[item.ID] = item
	}
	return items, nil
}

type transferRequest struct {
	IdempotencyKey string               `json:"idempotency_key"`
	Source         string               `json:"source_warehouse"`
	Destination    string               `json:"destination_warehouse"`
	Items          []model.ManifestLine `json:"items"`
	RequestedBy    string               `json:"requested_by"`
}

// CreateTransfer files a stock transfer and returns the transfer id
// assigned by the inventory system. Each call carries a fresh
// idempotency key so a retried POST cannot double-book the move.
func (c *InventoryClient) CreateTransfer(ctx context.Context, source, destination string, items []model.ManifestLine) (string, error) {
	req := transferRequest{
		IdempotencyKey: uuid.NewString(),
		Source:         source,
		Destination:    destination,
		Items:          items,
		RequestedBy:    c.agentName,
	}
	var resp struct {
		TransferID string `json:"transfer_id"`
	}
	if err := c.postJSON(ctx, "transfers", req, &resp); err != nil {
		return "", fmt.Errorf("create transfer %s->%s: %w", source, destination, err)
	}
	if resp.TransferID == "" {
		return "", fmt.Errorf("create transfer %s->%s: no transfer_id in response", source, destination)
	}
	c.logger.WithFields(logrus.Fields{
		"transfer_id": resp.TransferID,
		"source":      source,
		"destination": destination,
		"items":       len(items),
	}).Info("inventory transfer created")
	return resp.TransferID, nil
}

// UpdateItemQuantity sets the recorded quantity of one item in one
// warehouse.
func (c *InventoryClient) UpdateItemQuantity(ctx context.Context, warehouseID, itemID string, quantity int, reason string) error {
	body := map[string]any{
		"quantity":   quantity,
		"reason":     reason,
		"updated_by": c.agentName,
	}
	path := fmt.Sprintf("warehouses/%s/inventory/%s", warehouseID, itemID)
	if err := c.putJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("update %s in %s: %w", itemID, warehouseID, err)
	}
	return nil
}
