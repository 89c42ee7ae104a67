package db

import (
	"context"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// Brands

func (d *DB) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	err := d.Bun.NewSelect().Model(&brands).Order("id ASC").Scan(ctx)
	return brands, err
}

func (d *DB) GetBrand(ctx context.Context, id int64) (*models.Brand, error) {
	var b models.Brand
	if err := d.Bun.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DB) CreateBrand(ctx context.Context, b *models.Brand) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	return err
}

func (d *DB) UpdateBrand(ctx context.Context, b *models.Brand) error {
	_, err := d.Bun.NewUpdate().
		Model(b).
		Column("name", "phone_number", "image", "address", "daily_ticket_limit", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) BrandInUse(ctx context.Context, id int64) (bool, error) {
	buses, err := d.Bun.NewSelect().Model((*models.Bus)(nil)).Where("brand_id = ?", id).Exists(ctx)
	if err != nil || buses {
		return buses, err
	}
	return d.Bun.NewSelect().Model((*models.Route)(nil)).Where("brand_id = ?", id).Exists(ctx)
}

func (d *DB) DeleteBrand(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().Model((*models.Brand)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// Buses

func (d *DB) ListBuses(ctx context.Context, brandID int64) ([]models.Bus, error) {
	var buses []models.Bus
	q := d.Bun.NewSelect().Model(&buses).Relation("Brand").Order("bus.id ASC")
	if brandID > 0 {
		q = q.Where("bus.brand_id = ?", brandID)
	}
	err := q.Scan(ctx)
	return buses, err
}

func (d *DB) GetBus(ctx context.Context, id int64) (*models.Bus, error) {
	var b models.Bus
	err := d.Bun.NewSelect().
		Model(&b).
		Relation("Brand").
		Where("bus.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBusWithSeats inserts the bus and its seats in one transaction.
func (d *DB) CreateBusWithSeats(ctx context.Context, b *models.Bus, seats []models.Seat) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(b).Exec(ctx); err != nil {
			return err
		}
		if len(seats) == 0 {
			return nil
		}
		for i := range seats {
			seats[i].BusID = b.ID
		}
		_, err := tx.NewInsert().Model(&seats).Exec(ctx)
		return err
	})
}

func (d *DB) UpdateBus(ctx context.Context, b *models.Bus) error {
	_, err := d.Bun.NewUpdate().
		Model(b).
		Column("name", "license_plate", "type", "brand_id").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) LicensePlateExists(ctx context.Context, plate string, excludeID int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Bus)(nil)).
		Where("license_plate = ?", plate).
		Where("id <> ?", excludeID).
		Exists(ctx)
}

func (d *DB) BusHasSchedules(ctx context.Context, busID int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Schedule)(nil)).Where("bus_id = ?", busID).Exists(ctx)
}

// DeleteBus removes the bus with its seats and reviews.
func (d *DB) DeleteBus(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Review)(nil)).Where("bus_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Seat)(nil)).Where("bus_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Bus)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}

func (d *DB) SeatsByBus(ctx context.Context, busID int64) ([]models.Seat, error) {
	var seats []models.Seat
	err := d.Bun.NewSelect().Model(&seats).Where("bus_id = ?", busID).Order("seat_number ASC").Scan(ctx)
	return seats, err
}

// Routes

func (d *DB) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := d.Bun.NewSelect().Model(&routes).Relation("Brand").Order("route.id ASC").Scan(ctx)
	return routes, err
}

func (d *DB) GetRoute(ctx context.Context, id int64) (*models.Route, error) {
	var rt models.Route
	err := d.Bun.NewSelect().Model(&rt).Relation("Brand").Where("route.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (d *DB) CreateRoute(ctx context.Context, rt *models.Route) error {
	_, err := d.Bun.NewInsert().Model(rt).Exec(ctx)
	return err
}

func (d *DB) UpdateRoute(ctx context.Context, rt *models.Route) error {
	_, err := d.Bun.NewUpdate().
		Model(rt).
		Column("start_point", "end_point", "average_duration_min", "lowest_price", "distance_km", "image", "brand_id").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) RouteHasSchedules(ctx context.Context, routeID int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Schedule)(nil)).Where("route_id = ?", routeID).Exists(ctx)
}

func (d *DB) DeleteRoute(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().Model((*models.Route)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}
