package sshclient

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/utils"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// buildClientConfig assembles the ssh.ClientConfig for one device from its
// resolved credentials. Auth methods are stacked in order: password, key
// file, agent. Errors here are configuration problems and are not retried.
func buildClientConfig(device models.Device, connectTimeout time.Duration, knownHostsFile string) (*ssh.ClientConfig, error) {
	authMethods := make([]ssh.AuthMethod, 0, 2)

	if device.Password != "" {
		authMethods = append(authMethods, ssh.Password(device.Password))
	}

	if device.Auth == models.AuthMethodKey || device.KeyFile != "" {
		if device.KeyFile == "" {
			return nil, fmt.Errorf("device %s uses key auth but has no key file", device.Hostname)
		}
		signer, err := loadSigner(device.KeyFile, device.Passphrase)
		if err != nil {
			return nil, err
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if device.Auth == models.AuthMethodAgent {
		agentAuth, err := agentAuthMethod()
		if err != nil {
			return nil, fmt.Errorf("device %s uses agent auth: %w", device.Hostname, err)
		}
		authMethods = append(authMethods, agentAuth)
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no usable credentials for device %s", device.Hostname)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // fleet collection against managed inventories
	if knownHostsFile != "" {
		callback, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts file %s: %w", knownHostsFile, err)
		}
		hostKeyCallback = callback
	}

	config := &ssh.ClientConfig{
		User:            device.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         connectTimeout,
	}
	extendLegacyAlgorithms(config)
	return config, nil
}

// loadSigner reads and parses a private key file, with passphrase support.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}

	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}

// agentAuthMethod connects to the SSH agent named by SSH_AUTH_SOCK.
func agentAuthMethod() (ssh.AuthMethod, error) {
	sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK"))
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ssh agent: %w", err)
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

// extendLegacyAlgorithms widens the negotiated cipher, key exchange and MAC
// sets beyond the modern defaults. Older network gear still ships CBC
// ciphers and group1 key exchange.
func extendLegacyAlgorithms(config *ssh.ClientConfig) {
	config.SetDefaults()

	config.Config.Ciphers = append(config.Config.Ciphers, []string{
		"aes128-cbc", "aes192-cbc", "aes256-cbc",
		"3des-cbc",
	}...)

	config.Config.KeyExchanges = append(config.Config.KeyExchanges, []string{
		"diffie-hellman-group-exchange-sha256",
		"diffie-hellman-group-exchange-sha1",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}...)

	config.Config.MACs = append(config.Config.MACs, []string{
		"hmac-sha1",
		"hmac-sha1-96",
	}...)
}

// applySSHConfigOverrides resolves the device's per-host SSH config file and
// folds its values into the device: HostName replaces the dial target, Port
// replaces a default port, and User and IdentityFile fill empty fields.
func applySSHConfigOverrides(device models.Device) (models.Device, error) {
	if device.SSHConfigFile == "" {
		return device, nil
	}

	f, err := os.Open(device.SSHConfigFile)
	if err != nil {
		return device, fmt.Errorf("failed to open ssh config %s: %w", device.SSHConfigFile, err)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return device, fmt.Errorf("failed to parse ssh config %s: %w", device.SSHConfigFile, err)
	}

	alias := device.Hostname
	if hostname, err := cfg.Get(alias, "HostName"); err == nil && hostname != "" {
		device.Hostname = hostname
	}
	if port, err := cfg.Get(alias, "Port"); err == nil && port != "" {
		if parsed, perr := strconv.Atoi(port); perr == nil && device.Port == models.DefaultSSHPort {
			device.Port = parsed
		}
	}
	if user, err := cfg.Get(alias, "User"); err == nil && user != "" && device.Username == "" {
		device.Username = user
	}
	if identity, err := cfg.Get(alias, "IdentityFile"); err == nil && identity != "" &&
		device.Auth == models.AuthMethodKey && device.KeyFile == "" {
		device.KeyFile = utils.ExpandPath(identity)
	}
	if proxy, err := cfg.Get(alias, "ProxyJump"); err == nil && proxy != "" && device.JumpHost == "" {
		device.JumpHost = proxy
	}

	return device, nil
}

// resolveJumpDevice expands a [user@]host[:port] jump specification into a
// device of its own, resolved against the same ssh config file as the
// target. A bastion with its own Host block keeps its own address, user and
// identity file; anything still unresolved after that falls back to the
// target's credentials.
func resolveJumpDevice(target models.Device) (models.Device, error) {
	jump := models.Device{
		Hostname:      target.JumpHost,
		Port:          models.DefaultSSHPort,
		Auth:          models.AuthMethodKey,
		SSHConfigFile: target.SSHConfigFile,
	}

	if at := strings.LastIndex(jump.Hostname, "@"); at >= 0 {
		jump.Username = jump.Hostname[:at]
		jump.Hostname = jump.Hostname[at+1:]
	}
	if host, port, err := net.SplitHostPort(jump.Hostname); err == nil {
		if parsed, perr := strconv.Atoi(port); perr == nil {
			jump.Hostname = host
			jump.Port = parsed
		}
	}

	jump, err := applySSHConfigOverrides(jump)
	if err != nil {
		return models.Device{}, err
	}

	if jump.Username == "" {
		jump.Username = target.Username
	}
	if jump.KeyFile == "" {
		jump.Auth = target.Auth
		jump.Password = target.Password
		jump.KeyFile = target.KeyFile
		jump.Passphrase = target.Passphrase
	} else if jump.KeyFile == target.KeyFile {
		jump.Passphrase = target.Passphrase
	}

	return jump, nil
}
