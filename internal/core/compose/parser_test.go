package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Basic Parsing Tests
// =============================================================================

func TestParseDocument_Basic(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: nginx:latest
    ports:
      - "8080:80"
    environment:
      DEBUG: "1"
`)

	require.NoError(t, err)
	require.Len(t, doc.Services, 1)
	svc := doc.Services[0]
	assert.Equal(t, "web", svc.Name)
	assert.Equal(t, "nginx:latest", svc.Image)
	require.Len(t, svc.Ports, 1)
	assert.Equal(t, uint32(80), svc.Ports[0].Target)
	assert.Equal(t, uint32(8080), svc.Ports[0].Published)
	assert.Equal(t, "tcp", svc.Ports[0].Protocol)
	assert.Equal(t, "1", svc.Environment["DEBUG"])
}

func TestParseDocument_ServicesSortedByName(t *testing.T) {
	doc, err := ParseDocument(`
services:
  zulu:
    image: img
  alpha:
    image: img
`)

	require.NoError(t, err)
	require.Len(t, doc.Services, 2)
	assert.Equal(t, "alpha", doc.Services[0].Name)
	assert.Equal(t, "zulu", doc.Services[1].Name)
}

func TestParseDocument_Defaults(t *testing.T) {
	doc, err := ParseDocument(`
services:
  api:
    image: img
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	// Family defaults to the service name; every container starts essential.
	assert.Equal(t, "api", svc.Family)
	assert.True(t, svc.Essential)
}

func TestParseDocument_DeployLabels(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    deploy:
      replicas: 3
      labels:
        ecs.task.family: frontend
        ecs.task.essential: "false"
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	assert.Equal(t, "frontend", svc.Family)
	assert.False(t, svc.Essential)
	assert.Equal(t, 3, svc.Replicas)
}

func TestParseDocument_DeployResources(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    deploy:
      resources:
        limits:
          cpus: "0.5"
          memory: 512M
        reservations:
          memory: 256M
`)

	require.NoError(t, err)
	res := doc.Services[0].Resources
	assert.InDelta(t, 0.5, res.CPULimit, 0.001)
	assert.Equal(t, int64(512), res.MemoryLimitMB)
	assert.Equal(t, int64(256), res.MemoryResMB)
}

// =============================================================================
// Error Tests
// =============================================================================

func TestParseDocument_Empty(t *testing.T) {
	_, err := ParseDocument("   \n")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseDocument_InvalidYAML(t *testing.T) {
	_, err := ParseDocument("services: [unclosed")
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseDocument_NoServices(t *testing.T) {
	_, err := ParseDocument("networks:\n  internal: {}\n")
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestParseDocument_MissingImage(t *testing.T) {
	_, err := ParseDocument(`
services:
  web:
    command: ["run"]
`)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNoImage)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "services.web", parseErr.Field)
}

func TestParseDocument_CircularDependency(t *testing.T) {
	_, err := ParseDocument(`
services:
  a:
    image: img
    depends_on: [b]
  b:
    image: img
    depends_on: [a]
`)

	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestParseDocument_InvalidPublishedPort(t *testing.T) {
	_, err := ParseDocument(`
services:
  web:
    image: img
    ports:
      - target: 0
`)

	assert.ErrorIs(t, err, ErrServiceInvalidPort)
}

// =============================================================================
// Extension Tests
// =============================================================================

func TestParseDocument_ScalingExtension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    x-scaling:
      Range: "1-10"
      TargetScaling:
        CpuTarget: 75
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	require.NotNil(t, svc.Scaling)
	assert.Equal(t, "1-10", svc.Scaling.Range)
	require.NotNil(t, svc.Scaling.TargetScaling)
	require.NotNil(t, svc.Scaling.TargetScaling.CPUTarget)
	assert.Equal(t, 75, *svc.Scaling.TargetScaling.CPUTarget)
}

func TestParseDocument_EcsExtension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    x-ecs:
      LaunchType: EC2
      EphemeralStorage: 50
      CapacityProviders:
        - CapacityProvider: FARGATE
          Weight: 2
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	require.NotNil(t, svc.Compute)
	assert.Equal(t, "EC2", svc.Compute.LaunchType)
	assert.Equal(t, 50, svc.EphemeralGiB)
	require.Len(t, svc.Compute.CapacityProviders, 1)
	assert.Equal(t, "FARGATE", svc.Compute.CapacityProviders[0].Provider)
}

func TestParseDocument_NetworkAndXrayExtensions(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    x-xray: true
    x-network:
      Ingress:
        Myself: true
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	assert.True(t, svc.EnableTracing)
	require.NotNil(t, svc.Ingress)
	assert.True(t, svc.Ingress.Myself)
}

func TestParseDocument_ClusterExtension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
x-cluster:
  Name: prod
  Lookup: true
`)

	require.NoError(t, err)
	require.NotNil(t, doc.Cluster)
	assert.Equal(t, "prod", doc.Cluster.Name)
	assert.True(t, doc.Cluster.Lookup)
}

func TestParseDocument_VpcExtension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
x-vpc:
  Lookup:
    VpcTags:
      Environment: prod
    SubnetTags:
      Tier: app
`)

	require.NoError(t, err)
	require.NotNil(t, doc.Vpc)
	require.NotNil(t, doc.Vpc.Lookup)
	assert.Equal(t, "prod", doc.Vpc.Lookup.VpcTags["Environment"])
	assert.Equal(t, "app", doc.Vpc.Lookup.SubnetTags["Tier"])
}

func TestParseDocument_Elbv2Extension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    ports:
      - "80:80"
x-elbv2:
  public:
    Listeners:
      - Port: 80
        Targets:
          - Name: web:web:80
            Access: /
`)

	require.NoError(t, err)
	require.Len(t, doc.LoadBalancers, 1)
	lb := doc.LoadBalancers[0]
	assert.Equal(t, "public", lb.Name)
	assert.Equal(t, "application", lb.Type)
	require.Len(t, lb.Listeners, 1)
	assert.Equal(t, 80, lb.Listeners[0].Port)
	require.Len(t, lb.Listeners[0].Targets, 1)
	assert.Equal(t, "web:web:80", lb.Listeners[0].Targets[0].Name)
}

func TestParseDocument_DeployAutoscalingShorthand(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    deploy:
      x-aws-autoscaling:
        min: 2
        max: 5
        cpu: 70
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	require.NotNil(t, svc.Scaling)
	assert.Equal(t, "2-5", svc.Scaling.Range)
	require.NotNil(t, svc.Scaling.TargetScaling)
	require.NotNil(t, svc.Scaling.TargetScaling.CPUTarget)
	assert.Equal(t, 70, *svc.Scaling.TargetScaling.CPUTarget)
	assert.Empty(t, doc.Warnings)
}

func TestParseDocument_DeployAutoscalingBoundsDefaultToOne(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    deploy:
      x-aws-autoscaling:
        max: 4
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	require.NotNil(t, svc.Scaling)
	assert.Equal(t, "1-4", svc.Scaling.Range)
	assert.Nil(t, svc.Scaling.TargetScaling)
}

func TestParseDocument_ScalingWinsOverDeployAutoscaling(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    deploy:
      x-aws-autoscaling:
        min: 2
        max: 5
    x-scaling:
      Range: "1-10"
`)

	require.NoError(t, err)
	svc := doc.Services[0]
	require.NotNil(t, svc.Scaling)
	assert.Equal(t, "1-10", svc.Scaling.Range)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "Priority goes to x-scaling")
}

func TestParseDocument_MalformedExtension(t *testing.T) {
	_, err := ParseDocument(`
services:
  web:
    image: img
    x-scaling: [not, a, mapping]
`)

	assert.ErrorIs(t, err, ErrInvalidExtension)
}

// =============================================================================
// Secret Tests
// =============================================================================

func TestParseDocument_SecretArnFromExtension(t *testing.T) {
	doc, err := ParseDocument(`
services:
  web:
    image: img
    secrets:
      - source: db_password
        target: DB_PASSWORD
secrets:
  db_password:
    external: true
    x-arn: arn:aws:secretsmanager:::secret/db
`)

	require.NoError(t, err)
	require.Len(t, doc.Services[0].Secrets, 1)
	ref := doc.Services[0].Secrets[0]
	assert.Equal(t, "DB_PASSWORD", ref.Name)
	assert.Equal(t, "arn:aws:secretsmanager:::secret/db", ref.ValueFrom)
}
