package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snsy/gas-station-monitor/internal/config"
	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/repository"
)

// DirectoryService performs the administrative mutations on stations and
// devices and assembles the derived read views (presence, battery state).
type DirectoryService struct {
	repos *repository.Repos
	log   zerolog.Logger
}

// DeviceView is a device with its derived-at-read fields attached.
type DeviceView struct {
	domain.Device
	Online     bool `json:"online"`
	LowBattery bool `json:"low_battery"`
}

func (s *DirectoryService) view(d domain.Device, now time.Time) DeviceView {
	threshold := time.Duration(config.OfflineHours()) * time.Hour
	return DeviceView{
		Device:     d,
		Online:     d.Online(now, threshold),
		LowBattery: d.LowBattery(config.LowBatteryMillivolt()),
	}
}

type StationInput struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Address string `json:"address"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Status  *int16 `json:"status"`
}

func (s *DirectoryService) CreateStation(ctx context.Context, in StationInput) (*domain.Station, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return nil, fmt.Errorf("name and code are required: %w", domain.ErrValidation)
	}
	exists, err := s.repos.Stations.CodeExists(ctx, in.Code, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("station code %s already exists: %w", in.Code, domain.ErrConflict)
	}
	st := &domain.Station{
		Name:    in.Name,
		Code:    in.Code,
		Address: in.Address,
		Contact: in.Contact,
		Phone:   in.Phone,
		Status:  1,
	}
	if err := s.repos.Stations.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *DirectoryService) UpdateStation(ctx context.Context, id int64, in StationInput) (*domain.Station, error) {
	st, err := s.repos.Stations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Code != "" && in.Code != st.Code {
		exists, err := s.repos.Stations.CodeExists(ctx, in.Code, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("station code %s already exists: %w", in.Code, domain.ErrConflict)
		}
		st.Code = in.Code
	}
	if in.Name != "" {
		st.Name = in.Name
	}
	if in.Address != "" {
		st.Address = in.Address
	}
	if in.Contact != "" {
		st.Contact = in.Contact
	}
	if in.Phone != "" {
		st.Phone = in.Phone
	}
	if in.Status != nil {
		st.Status = *in.Status
	}
	if err := s.repos.Stations.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *DirectoryService) DeleteStation(ctx context.Context, id int64) error {
	return s.repos.Stations.Delete(ctx, id)
}

// StationDetail is the station with its current peer set.
type StationDetail struct {
	domain.Station
	IndoorDevice   *DeviceView  `json:"indoor_device"`
	OutdoorDevices []DeviceView `json:"outdoor_devices"`
}

func (s *DirectoryService) GetStation(ctx context.Context, id int64) (*StationDetail, error) {
	st, err := s.repos.Stations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &StationDetail{Station: *st, OutdoorDevices: []DeviceView{}}
	now := time.Now()

	indoor, err := s.repos.Devices.ListByStationRole(ctx, id, domain.RoleIndoor)
	if err != nil {
		return nil, err
	}
	if len(indoor) > 0 {
		v := s.view(indoor[0], now)
		detail.IndoorDevice = &v
	}
	outdoor, err := s.repos.Devices.ListByStationRole(ctx, id, domain.RoleOutdoor)
	if err != nil {
		return nil, err
	}
	for _, d := range outdoor {
		detail.OutdoorDevices = append(detail.OutdoorDevices, s.view(d, now))
	}
	return detail, nil
}

type DeviceInput struct {
	IMEI string            `json:"imei"`
	Role domain.DeviceRole `json:"role"`
	Name string            `json:"name"`
}

func (s *DirectoryService) CreateDevice(ctx context.Context, in DeviceInput) (*domain.Device, error) {
	in.IMEI = strings.TrimSpace(in.IMEI)
	if in.IMEI == "" {
		return nil, fmt.Errorf("imei is required: %w", domain.ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("role must be indoor or outdoor: %w", domain.ErrValidation)
	}
	if _, err := s.repos.Devices.GetByIMEI(ctx, in.IMEI); err == nil {
		return nil, fmt.Errorf("imei %s already exists: %w", in.IMEI, domain.ErrConflict)
	}
	if in.Name == "" {
		in.Name = "manually added " + in.IMEI
	}
	d := &domain.Device{IMEI: in.IMEI, Role: in.Role, Name: in.Name}
	if err := s.repos.Devices.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DirectoryService) GetDevice(ctx context.Context, imei string) (*DeviceView, error) {
	d, err := s.repos.Devices.GetByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}
	v := s.view(*d, time.Now())
	return &v, nil
}

// ListDevices returns a page of device views. Presence stays a derived
// field, but the online filter is pushed into SQL as a last_seen cutoff so
// total and pages describe the filtered set.
func (s *DirectoryService) ListDevices(ctx context.Context, f repository.DeviceFilter, online *bool, page, perPage int) ([]DeviceView, int64, error) {
	now := time.Now()
	if online != nil {
		f.Online = online
		f.OnlineCutoff = now.Add(-time.Duration(config.OfflineHours()) * time.Hour)
	}
	devices, total, err := s.repos.Devices.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, s.view(d, now))
	}
	return out, total, nil
}

func (s *DirectoryService) BindDevice(ctx context.Context, imei string, stationID int64) (*domain.Device, error) {
	d, err := s.repos.Devices.Bind(ctx, imei, stationID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("imei", imei).Int64("station_id", stationID).Msg("device bound")
	return d, nil
}

func (s *DirectoryService) UnbindDevice(ctx context.Context, imei string) (*domain.Device, error) {
	d, err := s.repos.Devices.Unbind(ctx, imei)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("imei", imei).Msg("device unbound")
	return d, nil
}

// Stats is the dashboard summary.
type Stats struct {
	StationCount int64                `json:"station_count"`
	DeviceCount  int64                `json:"device_count"`
	OnlineCount  int64                `json:"online_count"`
	RecentAlarms []domain.AlarmRecord `json:"recent_alarms"`
}

func (s *DirectoryService) GetStats(ctx context.Context) (*Stats, error) {
	stations, err := s.repos.Stations.Count(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.repos.Devices.Count(ctx)
	if err != nil {
		return nil, err
	}
	since := time.Now().Add(-time.Duration(config.OfflineHours()) * time.Hour)
	online, err := s.repos.Devices.CountOnline(ctx, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.repos.Alarms.Recent(ctx, 10)
	if err != nil {
		return nil, err
	}
	return &Stats{
		StationCount: stations,
		DeviceCount:  devices,
		OnlineCount:  online,
		RecentAlarms: recent,
	}, nil
}
