// Package discovery lists the processes, disks and databases visible to
// the configured Atlas project and caches them in the KV store with a
// refresh TTL, grounded on MongoDBAtlasCollector._get_process_names /
// _get_disk_names / _get_database_names / getpaginateddata in the Python
// reference implementation, generalized from the teacher's
// statemanager.Manager bounded-cache-with-eviction pattern to a
// KV-store-backed, TTL-checked-then-refreshed cache.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sumologic/mongodbatlas-collector/atlasclient"
	"github.com/sumologic/mongodbatlas-collector/kvstore"
)

const (
	processesKey      = "processes"
	diskNamesKey      = "disk_names"
	databaseNamesKey  = "database_names"
	clusterMappingKey = "cluster_mapping"
)

// processesRecord is the cached value under processesKey.
type processesRecord struct {
	LastSetDateMs int64    `json:"last_set_date_ms"`
	ProcessIDs    []string `json:"process_ids"`
	Hostnames     []string `json:"hostnames"`
}

// valuesRecord is the cached value under diskNamesKey/databaseNamesKey.
type valuesRecord struct {
	LastSetDateMs int64    `json:"last_set_date_ms"`
	Values        []string `json:"values"`
}

// clusterMappingRecord is the cached value under clusterMappingKey.
type clusterMappingRecord struct {
	LastSetDateMs int64             `json:"last_set_date_ms"`
	Values        map[string]string `json:"values"`
}

// Discovery lists and caches the processes/disks/databases/cluster
// aliases visible to one Atlas project.
type Discovery struct {
	Client          *atlasclient.Client
	Store           kvstore.Store
	Log             *logrus.Logger
	ProjectID       string
	PaginationLimit int
	RefreshTTL      time.Duration
	// ClusterFilters, when non-empty, restricts discovered processes to
	// those whose userAlias-derived cluster name is in this list.
	ClusterFilters []string
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// clusterName mirrors MongoDBAtlasCollector._get_cluster_name.
func clusterName(fullName string) string {
	if idx := strings.Index(fullName, "-shard"); idx >= 0 {
		return fullName[:idx]
	}
	return fullName
}

// pageResult is the minimal shape of every Atlas list endpoint used here.
type pageResult struct {
	Results []map[string]any `json:"results"`
}

// getPaginatedData walks path's pagination until a page comes back empty,
// concatenating every result object, mirroring getpaginateddata.
func (d *Discovery) getPaginatedData(ctx context.Context, path string) ([]map[string]any, error) {
	var all []map[string]any
	pageNum := 1
	for {
		params := url.Values{
			"itemsPerPage": {fmt.Sprint(d.PaginationLimit)},
			"pageNum":      {fmt.Sprint(pageNum)},
		}
		var page pageResult
		if err := d.Client.Get(ctx, path, params, &page); err != nil {
			d.Log.WithFields(logrus.Fields{"path": path, "page": pageNum, "err": err}).Error("discovery: paginated fetch failed")
			return all, err
		}
		if len(page.Results) == 0 {
			return all, nil
		}
		all = append(all, page.Results...)
		pageNum++
	}
}

// Processes returns the current process ids, hostnames and cluster alias
// mapping, refreshing the cache first if it is absent, stale, or empty.
func (d *Discovery) Processes(ctx context.Context) ([]string, []string, error) {
	var rec processesRecord
	ok, err := d.Store.Get(ctx, processesKey, &rec)
	if err != nil {
		return nil, nil, err
	}
	if !ok || nowMillis()-rec.LastSetDateMs > d.RefreshTTL.Milliseconds() || len(rec.ProcessIDs) == 0 {
		if err := d.refreshProcesses(ctx); err != nil {
			return nil, nil, err
		}
		if _, err := d.Store.Get(ctx, processesKey, &rec); err != nil {
			return nil, nil, err
		}
	}
	return rec.ProcessIDs, rec.Hostnames, nil
}

// ClusterMapping returns the raw-cluster-name to user-alias mapping
// produced by the last processes refresh.
func (d *Discovery) ClusterMapping(ctx context.Context) (map[string]string, error) {
	var rec clusterMappingRecord
	ok, err := d.Store.Get(ctx, clusterMappingKey, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	return rec.Values, nil
}

// refreshProcesses walks /groups/{project}/processes, applies the
// optional user-supplied cluster filter, and persists both the processes
// and cluster_mapping cache entries, mirroring _get_all_processes_from_project
// and _set_processes.
func (d *Discovery) refreshProcesses(ctx context.Context) error {
	path := fmt.Sprintf("/groups/%s/processes", d.ProjectID)
	all, err := d.getPaginatedData(ctx, path)
	if err != nil {
		return fmt.Errorf("discovery: listing processes: %w", err)
	}

	var allAliases []string
	seenAlias := map[string]bool{}
	for _, obj := range all {
		alias := clusterName(asString(obj["userAlias"]))
		if !seenAlias[alias] {
			seenAlias[alias] = true
			allAliases = append(allAliases, alias)
		}
	}

	var processIDs, hostnames []string
	mapping := map[string]string{}

	if len(allAliases) > 0 && len(d.ClusterFilters) > 0 {
		filterSet := map[string]bool{}
		for _, c := range d.ClusterFilters {
			filterSet[c] = true
		}
		seenID, seenHost := map[string]bool{}, map[string]bool{}
		for _, obj := range all {
			alias := clusterName(asString(obj["userAlias"]))
			if !filterSet[alias] {
				continue
			}
			host := asString(obj["hostname"])
			mapping[clusterName(host)] = alias
			if id := asString(obj["id"]); !seenID[id] {
				seenID[id] = true
				processIDs = append(processIDs, id)
			}
			if !seenHost[host] {
				seenHost[host] = true
				hostnames = append(hostnames, host)
			}
		}
		if len(mapping) == 0 {
			return fmt.Errorf("discovery: none of the configured clusters matched the available cluster aliases: %s", strings.Join(allAliases, ","))
		}
	} else {
		seenID, seenHost := map[string]bool{}, map[string]bool{}
		for _, obj := range all {
			id, host := asString(obj["id"]), asString(obj["hostname"])
			if !seenID[id] {
				seenID[id] = true
				processIDs = append(processIDs, id)
			}
			if !seenHost[host] {
				seenHost[host] = true
				hostnames = append(hostnames, host)
			}
			mapping[clusterName(host)] = clusterName(asString(obj["userAlias"]))
		}
	}

	now := nowMillis()
	if err := d.Store.Set(ctx, processesKey, processesRecord{LastSetDateMs: now, ProcessIDs: processIDs, Hostnames: hostnames}); err != nil {
		return err
	}
	return d.Store.Set(ctx, clusterMappingKey, clusterMappingRecord{LastSetDateMs: now, Values: mapping})
}

// DiskNames returns the disk partition names visible across the project's
// current processes, refreshing the cache first if it is absent, stale,
// or empty.
func (d *Discovery) DiskNames(ctx context.Context) ([]string, error) {
	var rec valuesRecord
	ok, err := d.Store.Get(ctx, diskNamesKey, &rec)
	if err != nil {
		return nil, err
	}
	if !ok || nowMillis()-rec.LastSetDateMs > d.RefreshTTL.Milliseconds() || len(rec.Values) == 0 {
		processIDs, _, err := d.Processes(ctx)
		if err != nil {
			return nil, err
		}
		if err := d.refreshValues(ctx, diskNamesKey, processIDs, "disks", "partitionName"); err != nil {
			return nil, err
		}
		if _, err := d.Store.Get(ctx, diskNamesKey, &rec); err != nil {
			return nil, err
		}
	}
	return rec.Values, nil
}

// DatabaseNames returns the database names visible across the project's
// current processes, refreshing the cache first if it is absent, stale,
// or empty.
func (d *Discovery) DatabaseNames(ctx context.Context) ([]string, error) {
	var rec valuesRecord
	ok, err := d.Store.Get(ctx, databaseNamesKey, &rec)
	if err != nil {
		return nil, err
	}
	if !ok || nowMillis()-rec.LastSetDateMs > d.RefreshTTL.Milliseconds() || len(rec.Values) == 0 {
		processIDs, _, err := d.Processes(ctx)
		if err != nil {
			return nil, err
		}
		if err := d.refreshValues(ctx, databaseNamesKey, processIDs, "databases", "databaseName"); err != nil {
			return nil, err
		}
		if _, err := d.Store.Get(ctx, databaseNamesKey, &rec); err != nil {
			return nil, err
		}
	}
	return rec.Values, nil
}

// refreshValues walks {project}/processes/{id}/{subresource} for every
// process id, collecting the deduplicated field values, mirroring
// _get_all_disks_from_host / _get_all_databases.
func (d *Discovery) refreshValues(ctx context.Context, cacheKey string, processIDs []string, subresource, field string) error {
	seen := map[string]bool{}
	var values []string
	for _, processID := range processIDs {
		path := fmt.Sprintf("/groups/%s/processes/%s/%s", d.ProjectID, processID, subresource)
		all, err := d.getPaginatedData(ctx, path)
		if err != nil {
			return fmt.Errorf("discovery: listing %s for process %s: %w", subresource, processID, err)
		}
		for _, obj := range all {
			v := asString(obj[field])
			if v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	return d.Store.Set(ctx, cacheKey, valuesRecord{LastSetDateMs: nowMillis(), Values: values})
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
