package shop

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/cache"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

// Comparisons manages comparison sets and builds their attribute matrix.
type Comparisons struct {
	uow      store.UnitOfWork
	cache    cache.MatrixCache
	maxItems int
	logger   *log.Entry
	metrics  *metrics.ShopMetrics
}

func NewComparisons(uow store.UnitOfWork, matrixCache cache.MatrixCache, maxItems int, m *metrics.ShopMetrics, logger *log.Entry) *Comparisons {
	if logger == nil {
		logger = log.WithField("component", "comparisons")
	}
	if matrixCache == nil {
		matrixCache = cache.Nop{}
	}
	return &Comparisons{
		uow:      uow,
		cache:    matrixCache,
		maxItems: maxItems,
		logger:   logger,
		metrics:  m,
	}
}

func (s *Comparisons) List(ctx context.Context, userID int64) ([]models.Comparison, error) {
	var out []models.Comparison
	err := s.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Comparisons().ListByUser(ctx, userID)
		return err
	})
	return out, err
}

func (s *Comparisons) Create(ctx context.Context, userID int64, name string) (*models.Comparison, error) {
	name, err := models.ValidateComparisonName(name)
	if err != nil {
		return nil, err
	}

	c := &models.Comparison{UserID: userID, Name: name}
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Comparisons().Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{"user_id": userID, "comparison_id": c.ID}).Debug("comparison created")
	return c, nil
}

func (s *Comparisons) Delete(ctx context.Context, userID, comparisonID int64) error {
	var version int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := owned(ctx, tx, userID, comparisonID, true)
		if err != nil {
			return err
		}
		version = c.Version
		return tx.Comparisons().Delete(ctx, comparisonID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, comparisonID, version)
	return nil
}

// AddItem appends an existing item to the set, enforcing the size cap and
// uniqueness.
func (s *Comparisons) AddItem(ctx context.Context, userID, comparisonID, itemID int64) (*models.Comparison, error) {
	var c *models.Comparison
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = owned(ctx, tx, userID, comparisonID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Items().Get(ctx, itemID); err != nil {
			return err
		}
		if len(c.ItemIDs) >= s.maxItems {
			return &models.ComparisonLimitExceededError{ComparisonID: comparisonID, Limit: s.maxItems}
		}
		if c.Contains(itemID) {
			return &models.DuplicateComparisonItemError{ComparisonID: comparisonID, ItemID: itemID}
		}
		if err := tx.Comparisons().AddItem(ctx, comparisonID, itemID); err != nil {
			return err
		}
		c.ItemIDs = append(c.ItemIDs, itemID)
		c.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, comparisonID, c.Version-1)
	return c, nil
}

// RemoveItem drops an item from the set. An item that is not in the set is
// reported as ItemNotFoundError.
func (s *Comparisons) RemoveItem(ctx context.Context, userID, comparisonID, itemID int64) error {
	var version int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := owned(ctx, tx, userID, comparisonID, true)
		if err != nil {
			return err
		}
		version = c.Version
		removed, err := tx.Comparisons().RemoveItem(ctx, comparisonID, itemID)
		if err != nil {
			return err
		}
		if !removed {
			return &models.ItemNotFoundError{ItemID: itemID}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, comparisonID, version)
	return nil
}

// Build returns the comparison matrix of a set owned by the user, from the
// cache when possible. The cache is keyed by the version read in the same
// snapshot the matrix is built from, so a concurrent change lands under a
// newer key instead of being overwritten by a stale matrix.
func (s *Comparisons) Build(ctx context.Context, userID, comparisonID int64) (*models.ComparisonMatrix, error) {
	var matrix *models.ComparisonMatrix
	hit := false
	err := s.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := owned(ctx, tx, userID, comparisonID, false)
		if err != nil {
			return err
		}

		cached, ok, err := s.cache.Get(ctx, comparisonID, c.Version)
		if err != nil {
			s.logger.WithError(err).WithField("comparison_id", comparisonID).Warn("comparison cache read failed")
		}
		if ok {
			matrix, hit = cached, true
			return nil
		}

		items := make([]models.Item, 0, len(c.ItemIDs))
		specs := make(map[int64][]models.Specification, len(c.ItemIDs))
		for _, itemID := range c.ItemIDs {
			item, err := tx.Items().Get(ctx, itemID)
			if models.IsKind(err, models.KindItemNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			itemSpecs, err := tx.Items().Specifications(ctx, itemID)
			if err != nil {
				return err
			}
			items = append(items, *item)
			specs[itemID] = itemSpecs
		}

		matrix = BuildMatrix(*c, items, specs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordComparisonCache(hit)
	if hit {
		return matrix, nil
	}
	if err := s.cache.Set(ctx, matrix); err != nil {
		s.logger.WithError(err).WithField("comparison_id", comparisonID).Warn("comparison cache write failed")
	}
	return matrix, nil
}

// BuildMatrix pivots per-item specifications into rows sorted by attribute
// name. An item without an attribute gets a NotApplicable cell with no unit.
// Values are opaque and never compared.
func BuildMatrix(c models.Comparison, items []models.Item, specs map[int64][]models.Specification) *models.ComparisonMatrix {
	matrix := &models.ComparisonMatrix{
		Comparison: c,
		Items:      make([]models.MatrixItem, 0, len(items)),
		Table:      []models.MatrixRow{},
	}

	attributes := make(map[string]struct{})
	for _, item := range items {
		cells := make(map[string]models.MatrixCell, len(specs[item.ID]))
		for _, spec := range specs[item.ID] {
			cells[spec.Name] = models.MatrixCell{Value: spec.Value, Unit: spec.Unit}
			attributes[spec.Name] = struct{}{}
		}
		matrix.Items = append(matrix.Items, models.MatrixItem{
			ID:             item.ID,
			Name:           item.Name,
			Price:          item.Price,
			ImageURL:       item.ImageURL,
			Specifications: cells,
		})
	}

	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		row := models.MatrixRow{Attribute: name, Cells: make([]models.MatrixCell, 0, len(matrix.Items))}
		for _, item := range matrix.Items {
			cell, ok := item.Specifications[name]
			if !ok {
				cell = models.MatrixCell{Value: models.NotApplicable}
			}
			row.Cells = append(row.Cells, cell)
		}
		matrix.Table = append(matrix.Table, row)
	}

	return matrix
}

// owned loads a comparison and hides those of other users behind
// ComparisonNotFoundError.
func owned(ctx context.Context, tx store.Tx, userID, comparisonID int64, forUpdate bool) (*models.Comparison, error) {
	var c *models.Comparison
	var err error
	if forUpdate {
		c, err = tx.Comparisons().GetForUpdate(ctx, comparisonID)
	} else {
		c, err = tx.Comparisons().Get(ctx, comparisonID)
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, &models.ComparisonNotFoundError{ComparisonID: comparisonID}
	}
	return c, nil
}

func (s *Comparisons) invalidate(ctx context.Context, comparisonID, version int64) {
	if err := s.cache.Invalidate(ctx, comparisonID, version); err != nil {
		s.logger.WithError(err).WithField("comparison_id", comparisonID).Warn("comparison cache invalidation failed")
	}
}
