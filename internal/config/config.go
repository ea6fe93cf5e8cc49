package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shibukawa/configdir"
	"go.uber.org/zap"
)

const logsDirectory = "logs"
const dataDirectory = "data"

const VendorName = "six78"
const ApplicationName = "featured"

const DefaultAdvertisePeriod = 10 * time.Second

const EnabledColor = lipgloss.Color("#7D56F4")
const DisabledColor = lipgloss.Color("#D14D41")
const ForegroundShadeColor = lipgloss.Color("#555555")

type StorageKind string

const (
	LocalStorage    StorageKind = "local"
	SQLiteStorage   StorageKind = "sqlite"
	PostgresStorage StorageKind = "postgres"
)

var nodeConfigPath string
var debug bool
var shards = 1
var cluster = "default"
var storageKind = string(LocalStorage)
var storagePath string
var storageDSN string
var supportFeatures multiValue
var status bool
var decommission bool
var advertisePeriod = DefaultAdvertisePeriod
var fleet = "shards.test"
var nameserver string
var wakuStaticNodes multiValue
var wakuLightMode bool
var wakuDiscV5 bool
var wakuDnsDiscovery bool

var Logger *zap.Logger
var LogFilePath string

// multiValue is a flag that can be given several times.
type multiValue []string

func (v *multiValue) String() string {
	return strings.Join(*v, ",")
}

func (v *multiValue) Set(value string) error {
	*v = append(*v, value)
	return nil
}

func SetupLogger() {
	var c zap.Config
	if debug {
		c = zap.NewDevelopmentConfig()
	} else {
		c = zap.NewProductionConfig()
	}

	LogFilePath = createLogFile()
	c.OutputPaths = []string{LogFilePath}
	c.Development = false
	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	Logger = logger
}

func createLogFile() string {
	name := fmt.Sprintf("%s-%s.log", ApplicationName, time.Now().UTC().Format(time.RFC3339))
	name = strings.Replace(name, ":", "-", -1)

	configDirs := configdir.New(VendorName, ApplicationName)
	folders := configDirs.QueryFolders(configdir.Global)
	path := filepath.Join(folders[0].Path, logsDirectory, name)

	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		panic(err)
	}

	if _, err := os.Create(path); err != nil {
		panic(err)
	}

	return path
}

func ParseArguments() {
	flag.StringVar(&nodeConfigPath, "config", "", "Node configuration file (YAML)")
	flag.BoolVar(&debug, "debug", false, "Show debug info")
	flag.IntVar(&shards, "shards", 1, "Number of execution units")
	flag.StringVar(&cluster, "cluster", "default", "Cluster name")
	flag.StringVar(&storageKind, "storage", string(LocalStorage), "Storage kind: local, sqlite or postgres")
	flag.StringVar(&storagePath, "storage.path", "", "Storage folder (local) or database file (sqlite)")
	flag.StringVar(&storageDSN, "storage.dsn", "", "Postgres connection string")
	flag.Var(&supportFeatures, "support", "Unmask and advertise a feature")
	flag.BoolVar(&status, "status", false, "Print features status and quit")
	flag.BoolVar(&decommission, "decommission", false, "Leave the cluster for good on shutdown")
	flag.DurationVar(&advertisePeriod, "advertise.period", DefaultAdvertisePeriod, "Features advertisement period")
	flag.StringVar(&fleet, "waku.fleet", "shards.test", "Waku fleet name")
	flag.StringVar(&nameserver, "waku.nameserver", "", "Waku nameserver")
	flag.Var(&wakuStaticNodes, "waku.staticnode", "Waku static node multiaddress")
	flag.BoolVar(&wakuLightMode, "waku.lightmode", false, "Waku lightpush/filter mode")
	flag.BoolVar(&wakuDiscV5, "waku.discv5", true, "Enable DiscV5 discovery")
	flag.BoolVar(&wakuDnsDiscovery, "waku.dnsdiscovery", true, "Enable DNS discovery")
	flag.Parse()
}

// DataPath returns the default folder for node data.
func DataPath() string {
	configDirs := configdir.New(VendorName, ApplicationName)
	folders := configDirs.QueryFolders(configdir.Global)
	return filepath.Join(folders[0].Path, dataDirectory)
}

func NodeConfigPath() string {
	return nodeConfigPath
}

func Debug() bool {
	return debug
}

func Shards() int {
	return shards
}

func Cluster() string {
	return cluster
}

func Storage() StorageKind {
	return StorageKind(storageKind)
}

func StoragePath() string {
	return storagePath
}

func StorageDSN() string {
	return storageDSN
}

func SupportFeatures() []string {
	return supportFeatures
}

func Status() bool {
	return status
}

func Decommission() bool {
	return decommission
}

func AdvertisePeriod() time.Duration {
	return advertisePeriod
}

func Fleet() string {
	return fleet
}

func Nameserver() string {
	return nameserver
}

func WakuStaticNodes() []string {
	return wakuStaticNodes
}

func WakuLightMode() bool {
	return wakuLightMode
}

func WakuDiscV5() bool {
	return wakuDiscV5
}

func WakuDnsDiscovery() bool {
	return wakuDnsDiscovery
}
