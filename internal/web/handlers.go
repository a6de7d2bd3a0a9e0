// internal/web/handlers.go - Inventory and history handlers
package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tophosts/internal/database"
	"tophosts/internal/history"
)

type HostRequest struct {
	Name      string            `json:"name" binding:"required"`
	Host      string            `json:"host"`
	IPv4      string            `json:"ipv4"`
	Groups    []string          `json:"groups"`
	Tags      []database.Tag    `json:"tags"`
	Inventory map[string]string `json:"inventory"`
	Macros    map[string]string `json:"macros"`
}

type ItemRequest struct {
	ID        string             `json:"itemid"`
	HostID    string             `json:"hostid" binding:"required"`
	Name      string             `json:"name" binding:"required"`
	Key       string             `json:"key_"`
	ValueType database.ValueType `json:"value_type"`
	Units     string             `json:"units"`
	History   string             `json:"history"`
	Trends    string             `json:"trends"`
}

// HistoryRequest is one ingested sample. Clock defaults to now; numeric
// items read Value as a number, the rest as text.
type HistoryRequest struct {
	Clock *time.Time    `json:"clock"`
	Value history.Value `json:"value"`
}

func (r HostRequest) apply(host *database.Host) {
	host.Name = r.Name
	host.Host = r.Host
	if host.Host == "" {
		host.Host = r.Name
	}
	host.IPv4 = r.IPv4
	host.Groups = r.Groups
	host.Tags = r.Tags
	host.Inventory = r.Inventory
	host.Macros = r.Macros
}

// GET /api/hosts?groupid=..&hostid=..&exclude_maintenance=true
func (s *Server) getHosts(c *gin.Context) {
	filters := database.HostFilters{
		GroupIDs:           c.QueryArray("groupid"),
		HostIDs:            c.QueryArray("hostid"),
		ExcludeMaintenance: c.Query("exclude_maintenance") == "true",
	}

	hosts, err := s.store.GetHosts(c.Request.Context(), filters)
	s.metrics.RecordOperation("get_hosts", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to get hosts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get hosts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  hosts,
		"count": len(hosts),
	})
}

func (s *Server) getHost(c *gin.Context) {
	host, err := s.store.GetHost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "Host not found", "Failed to get host")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": host})
}

func (s *Server) createHost(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	host := &database.Host{}
	req.apply(host)

	err := s.store.CreateHost(c.Request.Context(), host)
	s.metrics.RecordOperation("create_host", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to create host")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create host"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": host})
}

func (s *Server) updateHost(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	host, err := s.store.GetHost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "Host not found", "Failed to get host")
		return
	}

	req.apply(host)

	err = s.store.UpdateHost(c.Request.Context(), host)
	s.metrics.RecordOperation("update_host", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to update host")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update host"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": host})
}

func (s *Server) deleteHost(c *gin.Context) {
	id := c.Param("id")

	if _, err := s.store.GetHost(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "Host not found", "Failed to get host")
		return
	}

	err := s.store.DeleteHost(c.Request.Context(), id)
	s.metrics.RecordOperation("delete_host", err)
	if err != nil {
		logrus.WithError(err).WithField("host_id", id).Error("Failed to delete host")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete host"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Host deleted"})
}

// GET /api/items?hostid=..&groupid=..&name=CPU*
func (s *Server) getItems(c *gin.Context) {
	filters := database.ItemFilters{
		HostIDs:  c.QueryArray("hostid"),
		GroupIDs: c.QueryArray("groupid"),
		Name:     c.Query("name"),
	}

	items, err := s.store.GetItems(c.Request.Context(), filters)
	s.metrics.RecordOperation("get_items", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to get items")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) getItem(c *gin.Context) {
	item, err := s.store.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "Item not found", "Failed to get item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) createItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ValueType < database.ValueTypeFloat || req.ValueType > database.ValueTypeBinary {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value_type must be between 0 and 5"})
		return
	}

	item := &database.Item{
		ID:        req.ID,
		HostID:    req.HostID,
		Name:      req.Name,
		Key:       req.Key,
		ValueType: req.ValueType,
		Units:     req.Units,
	}
	for _, d := range []struct {
		value  string
		target *time.Duration
	}{{req.History, &item.History}, {req.Trends, &item.Trends}} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid retention: " + d.value})
			return
		}
		*d.target = parsed
	}

	err := s.store.CreateItem(c.Request.Context(), item)
	s.metrics.RecordOperation("create_item", err)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Host does not exist"})
			return
		}
		logrus.WithError(err).Error("Failed to create item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) deleteItem(c *gin.Context) {
	id := c.Param("id")

	if _, err := s.store.GetItem(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "Item not found", "Failed to get item")
		return
	}

	err := s.store.DeleteItem(c.Request.Context(), id)
	s.metrics.RecordOperation("delete_item", err)
	if err != nil {
		logrus.WithError(err).WithField("item_id", id).Error("Failed to delete item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// GET /api/items/:id/history?from=now-1h&to=now
func (s *Server) getItemHistory(c *gin.Context) {
	id := c.Param("id")

	if _, err := s.store.GetItem(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "Item not found", "Failed to get item")
		return
	}

	period := history.TimePeriod{
		From: c.DefaultQuery("from", "now-1h"),
		To:   c.DefaultQuery("to", "now"),
	}
	tr, err := period.Resolve(time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var data interface{}
	if strings.EqualFold(c.Query("source"), "trends") {
		data, err = s.store.GetTrends(c.Request.Context(), id, tr.From, tr.To)
	} else {
		data, err = s.store.GetHistory(c.Request.Context(), id, tr.From, tr.To)
	}
	s.metrics.RecordOperation("get_history", err)
	if err != nil {
		logrus.WithError(err).WithField("item_id", id).Error("Failed to get history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (s *Server) addItemHistory(c *gin.Context) {
	id := c.Param("id")

	item, err := s.store.GetItem(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err, "Item not found", "Failed to get item")
		return
	}

	var req []HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Samples without a clock are spaced a nanosecond apart in request
	// order; a sample with the same clock as a stored one replaces it.
	now := time.Now()
	values := make([]database.HistoryValue, 0, len(req))
	seen := make(map[int64]bool, len(req))
	for i, r := range req {
		hv := database.HistoryValue{ItemID: id, Clock: now.Add(time.Duration(i))}
		if r.Clock != nil {
			hv.Clock = *r.Clock
		}
		if seen[hv.Clock.UnixNano()] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate clock in batch", "index": i})
			return
		}
		seen[hv.Clock.UnixNano()] = true
		if item.ValueType.IsNumeric() {
			num, ok := numericValue(r.Value)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "numeric value required", "index": i})
				return
			}
			hv.Num = num
		} else {
			hv.Str = r.Value.String()
		}
		values = append(values, hv)
	}

	err = s.store.AddHistory(c.Request.Context(), values)
	s.metrics.RecordOperation("add_history", err)
	if err != nil {
		logrus.WithError(err).WithField("item_id", id).Error("Failed to add history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add history"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"count": len(values)})
}

func (s *Server) getMaintenances(c *gin.Context) {
	maintenances, err := s.store.ListMaintenances(c.Request.Context())
	s.metrics.RecordOperation("list_maintenances", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to list maintenances")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list maintenances"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  maintenances,
		"count": len(maintenances),
	})
}

// MaintenanceRequest saves a maintenance and puts the listed hosts in it.
type MaintenanceRequest struct {
	database.Maintenance
	HostIDs []string `json:"hostids"`
}

func (s *Server) saveMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != database.MaintenanceTypeNormal && req.Type != database.MaintenanceTypeNoData {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maintenance_type must be 0 or 1"})
		return
	}

	ctx := c.Request.Context()
	m := req.Maintenance
	err := s.store.SaveMaintenance(ctx, &m)
	s.metrics.RecordOperation("save_maintenance", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to save maintenance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save maintenance"})
		return
	}

	for _, hostID := range req.HostIDs {
		host, err := s.store.GetHost(ctx, hostID)
		if err != nil {
			s.storeError(c, err, "Host not found: "+hostID, "Failed to get host")
			return
		}
		host.MaintenanceStatus = database.MaintenanceStatusOn
		host.MaintenanceID = m.ID
		host.MaintenanceType = m.Type
		if err := s.store.UpdateHost(ctx, host); err != nil {
			logrus.WithError(err).WithField("host_id", hostID).Error("Failed to update host maintenance")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update host"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"data": m})
}

// numericValue accepts numbers and numeric strings.
func numericValue(v history.Value) (float64, bool) {
	if v.Numeric {
		return v.Num, true
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
	return n, err == nil
}

// storeError answers 404 for missing records and 500 otherwise.
func (s *Server) storeError(c *gin.Context, err error, notFound, failed string) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	logrus.WithError(err).Error(failed)
	c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
}
