package mysql

import (
	"context"
	"fmt"

	"github.com/move-sure/ss-transport-sub000/internal/entity"
	"github.com/move-sure/ss-transport-sub000/internal/resolver"
)

// Cities 查询全部城市（实现 resolver.Directory）
func (dao *DAO) Cities(ctx context.Context) ([]resolver.City, error) {
	var rows []entity.City
	if err := dao.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}

	cities := make([]resolver.City, 0, len(rows))
	for _, r := range rows {
		cities = append(cities, resolver.City{ID: r.ID, Name: r.Name, Code: r.Code})
	}
	return cities, nil
}

// TransportersByCity 查询城市下的承运人，按名称排序（实现 resolver.Directory）
func (dao *DAO) TransportersByCity(ctx context.Context, cityID int64) ([]resolver.TransportCandidate, error) {
	var rows []entity.Transport
	err := dao.db.WithContext(ctx).
		Where("city_id = ?", cityID).
		Order("transport_name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transporters for city %d: %w", cityID, err)
	}

	candidates := make([]resolver.TransportCandidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, resolver.TransportCandidate{
			ID:     r.ID,
			Name:   r.Name,
			GSTIN:  r.GSTIN,
			CityID: r.CityID,
			Mobile: r.Mobile,
		})
	}
	return candidates, nil
}
