package orders

import (
	"context"
	"fmt"
)

// ItemUpdate is the outcome of one seller item transition.
type ItemUpdate struct {
	Item  OrderItem `json:"item"`
	Order Order     `json:"order"`
	// Changed is false when the item already had the requested status.
	Changed bool `json:"changed"`
	// OrderChanged reports an aggregate order status change.
	OrderChanged bool `json:"order_changed"`
}

// UpdateItemStatus moves one line item to status on behalf of its seller.
//
// The order row is locked for the whole transition, the item write is a
// compare-and-swap on its previous status, and stock is decremented (floored
// at zero) only when delivered_at is stamped for the first time. The order's
// aggregate status is then recomputed from the item statuses and logged
// separately when it changes.
func (s *Service) UpdateItemStatus(ctx context.Context, sellerID, itemID, status string) (ItemUpdate, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return ItemUpdate{}, err
	}

	var (
		res    ItemUpdate
		events []Event
	)
	err = s.Store.InTx(ctx, func(q Queries) error {
		item, err := q.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.SellerID != sellerID {
			return ErrNotOwner
		}

		o, err := q.LockOrder(ctx, item.OrderID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		cur := o.Items[idx]
		if cur.Status == to {
			res = ItemUpdate{Item: cur, Order: o}
			return nil
		}

		actor := UserActor(sellerID)
		now := s.now()
		from := cur.Status
		cur.Status = to
		if to == StatusShipped && cur.ShippedAt == nil {
			cur.ShippedAt = &now
		}
		ok, err := q.CompareAndSetItemStatus(ctx, cur, from)
		if err != nil {
			return fmt.Errorf("update item status: %w", err)
		}
		if !ok {
			return ErrConflict
		}

		if to == StatusDelivered {
			stamped, err := q.MarkItemDelivered(ctx, cur.ID, now)
			if err != nil {
				return fmt.Errorf("mark delivered: %w", err)
			}
			if stamped {
				cur.DeliveredAt = &now
				if cur.ProductID != nil {
					if err := q.DecrementStock(ctx, *cur.ProductID, cur.Quantity); err != nil {
						return fmt.Errorf("decrement stock: %w", err)
					}
				}
			}
		}

		note := fmt.Sprintf("Item %q updated to %s.", cur.ProductName, to)
		if err := s.appendLog(ctx, q, o.ID, actor, &from, to, note); err != nil {
			return err
		}

		statuses := make(map[string]Status, len(o.Items))
		for _, it := range o.Items {
			statuses[it.ID] = it.Status
		}
		o.Items[idx] = cur
		res = ItemUpdate{Item: cur, Changed: true}
		itemEv := Event{Type: EventItemStatusChanged, Actor: actor, Item: &cur, From: from, To: to, Note: note}

		next, changed := NextOrderStatus(o.Status, statuses, ItemTransitioned{ItemID: cur.ID, From: from, To: to})
		if changed {
			prev := o.Status
			o.Status = next
			o.UpdatedAt = now
			if next == StatusShipped && o.ShippedAt == nil {
				o.ShippedAt = &now
			}
			if next == StatusDelivered && o.DeliveredAt == nil {
				o.DeliveredAt = &now
			}
			if err := q.UpdateOrderStatus(ctx, o); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			onote := fmt.Sprintf("Order status updated based on items (now %s).", next)
			if err := s.appendLog(ctx, q, o.ID, actor, &prev, next, onote); err != nil {
				return err
			}
			res.OrderChanged = true
			itemEv.Order = o
			events = append(events, itemEv, Event{Type: EventOrderStatusChanged, Actor: actor, Order: o, From: prev, To: next, Note: onote})
		} else {
			itemEv.Order = o
			events = append(events, itemEv)
		}
		res.Order = o
		return nil
	})
	if err != nil {
		return ItemUpdate{}, err
	}

	if res.Changed {
		s.logger().Infow("item status updated", "order_id", res.Order.ID, "item_id", itemID, "status", to, "order_status", res.Order.Status)
	}
	s.dispatch(ctx, events...)
	return res, nil
}
