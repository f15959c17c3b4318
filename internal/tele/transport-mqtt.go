package tele

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/acudp/helpers"
	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
	"github.com/temoto/alive/v2"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

type transportMqtt struct {
	log            *log2.Log
	m              mqtt.Client
	mopt           *mqtt.ClientOptions
	alive          *alive.Alive
	networkTimeout time.Duration

	topicStatus  string
	topicSession string
	topicCar     string
	topicLap     string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	if teleConfig.MqttBroker == "" {
		return errors.NotValidf("tele mqtt_broker empty")
	}
	self.log = log
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("tele.mqtt ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if teleConfig.MqttLogDebug {
		mqtt.DEBUG = mqttLog
	}

	prefix := strings.TrimRight(teleConfig.TopicPrefix, "/")
	self.topicStatus = prefix + "/status"
	self.topicSession = prefix + "/session"
	self.topicCar = prefix + "/car"
	self.topicLap = prefix + "/lap"

	self.networkTimeout = helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout)
	if self.networkTimeout < 1*time.Second {
		self.networkTimeout = 1 * time.Second
	}
	connectTimeout := self.networkTimeout * 3
	keepaliveTimeout := helpers.IntSecondDefault(teleConfig.KeepaliveSec, self.networkTimeout/2)

	onConnect := func(c mqtt.Client) {
		self.log.Debugf("tele mqtt connected broker=%s", teleConfig.MqttBroker)
		c.Publish(self.topicStatus, 1, true, []byte(payloadOnline))
	}
	onLost := func(_ mqtt.Client, err error) {
		self.log.Errorf("tele mqtt connection lost err=%v", err)
	}

	self.mopt = mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetAutoReconnect(true).
		SetBinaryWill(self.topicStatus, []byte(payloadOffline), 1, true).
		SetCleanSession(true).
		SetClientID(teleConfig.ClientID).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(onLost).
		SetKeepAlive(keepaliveTimeout).
		SetMaxReconnectInterval(connectTimeout).
		SetOnConnectHandler(onConnect).
		SetOrderMatters(false).
		SetPingTimeout(self.networkTimeout).
		SetWriteTimeout(self.networkTimeout)
	if teleConfig.MqttPassword != "" {
		clientID, password := teleConfig.ClientID, teleConfig.MqttPassword
		self.mopt.SetCredentialsProvider(func() (string, string) { return clientID, password })
	}
	self.m = mqtt.NewClient(self.mopt)

	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.online()
	return nil
}

func (self *transportMqtt) Close() {
	self.alive.Stop()
	self.alive.Wait()
	if self.m.IsConnected() {
		t := self.m.Publish(self.topicStatus, 1, true, []byte(payloadOffline))
		_ = self.tokenWait(t, "publish status")
	}
	self.m.Disconnect(uint(self.networkTimeout / time.Millisecond))
}

func (self *transportMqtt) SendSession(payload []byte) bool {
	t := self.m.Publish(self.topicSession, 1, true, payload)
	return self.tokenWait(t, "publish session") == nil
}

func (self *transportMqtt) SendCar(payload []byte) bool {
	if !self.m.IsConnectionOpen() {
		return false
	}
	self.m.Publish(self.topicCar, 0, true, payload)
	return true
}

func (self *transportMqtt) SendLap(payload []byte) bool {
	t := self.m.Publish(self.topicLap, 1, false, payload)
	return self.tokenWait(t, "publish lap") == nil
}

func (self *transportMqtt) online() {
	defer self.alive.Done()
	for self.alive.IsRunning() {
		self.log.Debugf("tele connect before")
		t := self.m.Connect()
		if self.tokenWait(t, "connect") == nil {
			return // success path, reconnects are handled by paho
		}
		select {
		case <-time.After(self.networkTimeout):
		case <-self.alive.StopChan():
		}
	}
}

func (self *transportMqtt) tokenWait(t mqtt.Token, tag string) error {
	if !t.WaitTimeout(self.networkTimeout * 3) {
		err := errors.Errorf("%s timeout", tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotate(err, tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	return nil
}
